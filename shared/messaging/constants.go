package messaging

// Queue and exchange names shared by the API server and the pre-generation worker.
// The publisher and the consumer must declare the queue with identical arguments.
const (
	PregenerationQueueName = "story_pregeneration_tasks"
	PregenerationDLXName   = "story_pregeneration_tasks_dlx"
	PregenerationDLQName   = "story_pregeneration_tasks_dlq"
	PregenerationDLQKey    = "dlq"
)
