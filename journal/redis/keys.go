package redis

func runKey(keyPrefix string, runID string) string {
	return keyPrefix + "run:" + runID
}

func taskRecordsKey(keyPrefix string, runID string) string {
	return keyPrefix + "task-records:" + runID
}

// runsByCreation returns the key for the ZSET that contains all run ids
// sorted by creation date. The score is the creation time.
func runsByCreation(keyPrefix string) string {
	return keyPrefix + "runs-by-creation"
}
