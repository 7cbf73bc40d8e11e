package core

// sufficientSpace applies the 1.1x free-space preflight in integer
// arithmetic so the boundary is exact: free space at or below 1.1x
// the required bytes is rejected.
func sufficientSpace(free, required int64) bool {
	return free*10 > required*11
}
