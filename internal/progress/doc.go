// Package progress prints human-readable progress of a download run.
//
// A Reporter is registered as the coordinator observer and prints an
// aggregate line at a fixed interval:
//
//	[psn-updater] BCUS98148 - LittleBigPlanet: 4 package(s), 1.20 GB
//	[psn-updater] Progress: 45.2% | 553.10 MB / 1.20 GB | Speed: 12.40 MB/s | ETA: 52s
//	[psn-updater] Packages: 1 completed | 2 in-progress | 1 queued | 0 failed
package progress
