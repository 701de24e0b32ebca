package port

// DiskUsage describes the capacity of the volume backing the download
// directory.
type DiskUsage struct {
	Total   uint64
	Used    uint64
	Free    uint64
	UsedPct float64
}

// SpaceChecker reports free space on the volume that stores downloads.
type SpaceChecker interface {
	GetDiskUsage() (*DiskUsage, error)
}
