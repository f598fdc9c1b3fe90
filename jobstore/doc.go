// Package jobstore persists jobs, transcripts, artifacts and speaker
// identities with gorm, and decorates the job repository with a Redis
// read-through cache and Kafka status events.
//
// Typical wiring:
//
//	jobs := jobstore.NewJobRepository(db)
//	var repo pipeline.JobRepository = jobstore.NewCachedJobRepository(jobs, redisClient, "", 0, log)
//	repo = jobstore.NewEventingJobRepository(repo, producer, "meetingflow.jobs", "meetingworker", log)
package jobstore
