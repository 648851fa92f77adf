package dynamo

// DynamoDB attribute and index names shared across repos.
const (
	fieldUserID    = "user_id"
	fieldEmail     = "email"
	fieldUsername  = "username"
	fieldUpdatedAt = "updated_at"
	fieldSubject   = "subject"
	fieldFlow      = "flow"
	fieldPurgeAt   = "purge_at"
	fieldAttempts  = "attempts"
	fieldActivity  = "activity_id"

	indexEmail        = "email-index"
	indexUsername     = "username-index"
	indexUserActivity = "user_id-activity_id-index"
)
