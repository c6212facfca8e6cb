package domain

// User is an identity as resolved by the directory.
type User struct {
	ID          string
	Name        string
	MentionName string
}
