// internal/workers/issues/post-issue-message/models.go
package postissuemessage

import "proco-workers/internal/models"

type Input struct {
	IssueID  string `json:"issueId"`
	AuthorID string `json:"authorId"`
	Content  string `json:"content"`
}

type Output struct {
	Message models.Message `json:"message"`
}
