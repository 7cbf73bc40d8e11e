package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/Redslayer112/lantransfer/config"
	"github.com/Redslayer112/lantransfer/core"
	"github.com/Redslayer112/lantransfer/logger"
	"github.com/Redslayer112/lantransfer/progress"
	"github.com/Redslayer112/lantransfer/styles"
)

const version = "1.0"

func New() *cli.Command {
	return &cli.Command{
		Name:    "lantransfer",
		Usage:   "direct laptop-to-laptop file and directory transfer over LAN",
		Version: version,
		Action:  rootAction,
		Commands: []*cli.Command{
			sendCommand(),
			receiveCommand(),
		},
	}
}

func rootAction(ctx context.Context, cmd *cli.Command) error {
	banner := figure.NewFigure("lantransfer", "", true)
	banner.Print()

	fmt.Println()

	return cli.ShowAppHelp(cmd)
}

func defaultFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path to a JSON config file",
		},
		&cli.StringFlag{
			Name:    "local",
			Aliases: []string{"l"},
			Usage:   "local interface address to bind",
		},
	}
}

func sendCommand() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "send a file or directory to a receiving peer",
		ArgsUsage: "<path>",
		Flags: append(defaultFlags(),
			&cli.StringFlag{
				Name:     "target",
				Aliases:  []string{"t"},
				Usage:    "receiver address (host or host:port)",
				Required: true,
			},
		),
		Action: sendAction,
	}
}

func sendAction(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("missing path argument")
	}

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	target := cmd.String("target")
	if _, _, err := net.SplitHostPort(target); err != nil {
		target = net.JoinHostPort(target, strconv.Itoa(cfg.Port))
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	sender := core.NewSender(cfg, log)
	sender.Progress = &barReporter{desc: "Sending"}

	if info.IsDir() {
		fmt.Println(styles.INFO.Render(fmt.Sprintf("Sending directory %s to %s", path, target)))
		err = sender.SendDirectory(path, target, cmd.String("local"))
	} else {
		fmt.Println(styles.INFO.Render(fmt.Sprintf("Sending %s (%s) to %s",
			path, humanize.Bytes(uint64(info.Size())), target)))
		err = sender.SendFile(path, target, cmd.String("local"))
	}
	if err != nil {
		fmt.Println(styles.ERROR.Render("Transfer failed: " + err.Error()))
		return err
	}

	fmt.Println(styles.SUCCESS.Render("Transfer complete"))
	return nil
}

func receiveCommand() *cli.Command {
	return &cli.Command{
		Name:  "receive",
		Usage: "receive files from sending peers until interrupted",
		Flags: append(defaultFlags(),
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Usage:   "destination directory for received files",
			},
		),
		Action: receiveAction,
	}
}

func receiveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	dir := cmd.String("dir")
	if dir == "" {
		dir = cfg.ReceivedDir
	}

	addr := net.JoinHostPort(cmd.String("local"), strconv.Itoa(cfg.Port))

	srv := core.NewServer(cfg, dir, log)

	bars := progress.New()
	srv.Receiver().NewProgress = func(name string, total int64) core.Reporter {
		bar := bars.NewBar(total, name)
		return core.ReporterFunc(func(done, _ int64) {
			bar.SetCurrent(done)
		})
	}

	errch := make(chan error, 1)
	go func() {
		errch <- srv.Start(addr)
	}()

	if err := srv.WaitReady(5 * time.Second); err != nil {
		select {
		case serr := <-errch:
			return serr
		default:
			return err
		}
	}

	fmt.Println(styles.SUCCESS.Render("Listening on " + srv.Addr().String()))
	fmt.Println(styles.INFO.Render("Files will be saved in " + dir))

	select {
	case <-ctx.Done():
		srv.Stop()
		<-errch
	case err := <-errch:
		if err != nil {
			return err
		}
	}
	bars.Wait()

	if failed := srv.FailedValidations(); len(failed) > 0 {
		fmt.Println(styles.ERROR.Render(
			fmt.Sprintf("%d file(s) failed integrity check:", len(failed))))
		for _, f := range failed {
			fmt.Println(styles.ERROR.Render("  " + f.File))
			fmt.Println(styles.INFO.Render("    expected: " + f.Expected))
			fmt.Println(styles.INFO.Render("    received: " + f.Received))
		}
	}

	fmt.Println(styles.WARNING.Render("Receive mode stopped"))
	return nil
}

func newLogger(cfg *config.Config) (logger.Logger, error) {
	path, err := logger.LogPath()
	if err != nil {
		return nil, err
	}
	return logger.New(path, cfg.LogLevel), nil
}
