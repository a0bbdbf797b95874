// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInputValidationFailed ErrorCode = "INPUT_VALIDATION_FAILED"

	ErrCodeTenantNotFound   ErrorCode = "TENANT_NOT_FOUND"
	ErrCodeUserNotTenant    ErrorCode = "USER_NOT_TENANT"
	ErrCodePropertyRequired ErrorCode = "PROPERTY_REQUIRED"
	ErrCodeIssueNotFound    ErrorCode = "ISSUE_NOT_FOUND"
	ErrCodeNotParticipant   ErrorCode = "AUTHOR_NOT_PARTICIPANT"

	ErrCodeModelUnavailable ErrorCode = "MODEL_UNAVAILABLE"
	ErrCodeModelTimeout     ErrorCode = "MODEL_TIMEOUT"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeHistoryLoadFailed        ErrorCode = "HISTORY_LOAD_FAILED"
	ErrCodeVendorLookupFailed       ErrorCode = "VENDOR_LOOKUP_FAILED"
	ErrCodeIssueCreateFailed        ErrorCode = "ISSUE_CREATE_FAILED"
	ErrCodeMessagePersistFailed     ErrorCode = "MESSAGE_PERSIST_FAILED"

	ErrCodeSearchQueryFailed ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeSearchTimeout     ErrorCode = "SEARCH_TIMEOUT"
	ErrCodeIndexNotFound     ErrorCode = "INDEX_NOT_FOUND"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"

	ErrCodeExternalService  ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout          ErrorCode = "TIMEOUT_ERROR"
	ErrCodeResourceNotFound ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeBusinessRule     ErrorCode = "BUSINESS_RULE_VIOLATION"
	ErrCodeAuthentication   ErrorCode = "AUTHENTICATION_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata attaches a key/value to the error and returns it.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewInputValidationFailedError creates a non-retryable input validation error.
func NewInputValidationFailedError(details string) *StandardError {
	return newError(ErrCodeInputValidationFailed, "Job input failed schema validation", details, false)
}

func NewTenantNotFoundError(tenantID string) *StandardError {
	return newError(ErrCodeTenantNotFound, "Tenant not found", fmt.Sprintf("tenantId: %s", tenantID), false)
}

func NewUserNotTenantError(userID string) *StandardError {
	return newError(ErrCodeUserNotTenant, "User is not a tenant", fmt.Sprintf("userId: %s", userID), false)
}

func NewPropertyRequiredError(tenantID string) *StandardError {
	return newError(ErrCodePropertyRequired, "Property ID is required for chat messages",
		fmt.Sprintf("tenantId: %s has no property on record", tenantID), false)
}

func NewIssueNotFoundError(issueID string) *StandardError {
	return newError(ErrCodeIssueNotFound, "Issue not found", fmt.Sprintf("issueId: %s", issueID), false)
}

// NewNotParticipantError is raised when a user posts on an issue that is
// neither theirs as tenant nor on their property as landlord.
func NewNotParticipantError(userID, issueID string) *StandardError {
	return newError(ErrCodeNotParticipant, "Author is not a participant of the issue",
		fmt.Sprintf("userId: %s, issueId: %s", userID, issueID), false)
}

// NewModelUnavailableError is what the tenant sees as a generic "try again".
func NewModelUnavailableError(err error) *StandardError {
	return newError(ErrCodeModelUnavailable, "Language model call failed", err.Error(), true)
}

func NewModelTimeoutError(err error) *StandardError {
	return newError(ErrCodeModelTimeout, "Language model call timed out", err.Error(), true)
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true)
}

func NewHistoryLoadFailedError(err error) *StandardError {
	return newError(ErrCodeHistoryLoadFailed, "Conversation history could not be loaded", err.Error(), true)
}

func NewVendorLookupFailedError(err error) *StandardError {
	return newError(ErrCodeVendorLookupFailed, "Vendor candidates could not be loaded", err.Error(), true)
}

func NewIssueCreateFailedError(err error) *StandardError {
	return newError(ErrCodeIssueCreateFailed, "Issue record could not be created", err.Error(), true)
}

func NewMessagePersistFailedError(err error) *StandardError {
	return newError(ErrCodeMessagePersistFailed, "Chat message could not be stored", err.Error(), true)
}

// NewSearchQueryFailedError creates a retryable search query error.
func NewSearchQueryFailedError(index string, err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Elasticsearch query error",
		fmt.Sprintf("index: %s, error: %s", index, err.Error()), true)
}

// NewSearchTimeoutError creates a retryable search timeout error.
func NewSearchTimeoutError(index string) *StandardError {
	return newError(ErrCodeSearchTimeout, "Elasticsearch query timeout", fmt.Sprintf("index: %s", index), true)
}

// NewIndexNotFoundError creates a non-retryable index not found error.
func NewIndexNotFoundError(index string) *StandardError {
	return newError(ErrCodeIndexNotFound, "Elasticsearch index not found", fmt.Sprintf("index: %s", index), false)
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed",
		fmt.Sprintf("channel: %s, error: %s", channel, err.Error()), true)
}

// NewInternalError wraps anything that has no better classification.
func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

// Generic constructors

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalService, fmt.Sprintf("External service '%s' error", service), err.Error(), true)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Service '%s' timeout", service), err.Error(), true)
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return newError(ErrCodeResourceNotFound, fmt.Sprintf("Resource not found in %s", service), details, false)
}

func NewBusinessRuleError(message, details string) *StandardError {
	return newError(ErrCodeBusinessRule, message, details, false)
}

func NewAuthenticationError(details string) *StandardError {
	return newError(ErrCodeAuthentication, "Authentication failed", details, false)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to the BPMN error codes caught by
// boundary events in the intake process. They are currently identical.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInputValidationFailed:    "INPUT_VALIDATION_FAILED",
	ErrCodeTenantNotFound:           "TENANT_NOT_FOUND",
	ErrCodeUserNotTenant:            "USER_NOT_TENANT",
	ErrCodePropertyRequired:         "PROPERTY_REQUIRED",
	ErrCodeIssueNotFound:            "ISSUE_NOT_FOUND",
	ErrCodeNotParticipant:           "AUTHOR_NOT_PARTICIPANT",
	ErrCodeModelUnavailable:         "MODEL_UNAVAILABLE",
	ErrCodeModelTimeout:             "MODEL_TIMEOUT",
	ErrCodeDatabaseConnectionFailed: "DATABASE_CONNECTION_FAILED",
	ErrCodeHistoryLoadFailed:        "HISTORY_LOAD_FAILED",
	ErrCodeVendorLookupFailed:       "VENDOR_LOOKUP_FAILED",
	ErrCodeIssueCreateFailed:        "ISSUE_CREATE_FAILED",
	ErrCodeMessagePersistFailed:     "MESSAGE_PERSIST_FAILED",
	ErrCodeSearchQueryFailed:        "SEARCH_QUERY_FAILED",
	ErrCodeSearchTimeout:            "SEARCH_TIMEOUT",
	ErrCodeIndexNotFound:            "INDEX_NOT_FOUND",
	ErrCodeNotificationSendFailed:   "NOTIFICATION_SEND_FAILED",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeHistoryLoadFailed,
		ErrCodeVendorLookupFailed,
		ErrCodeIssueCreateFailed,
		ErrCodeMessagePersistFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeNotificationSendFailed:
		return 3

	case ErrCodeSearchTimeout:
		return 2

	// A failed reply is surfaced to the tenant; one redelivery at most.
	case ErrCodeModelUnavailable,
		ErrCodeModelTimeout:
		return 1

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "MODEL"):
		return "AI"
	case strings.Contains(codeStr, "TENANT") || strings.Contains(codeStr, "PROPERTY") ||
		strings.Contains(codeStr, "PARTICIPANT"):
		return "TENANT"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "HISTORY") ||
		strings.Contains(codeStr, "ISSUE") || strings.Contains(codeStr, "MESSAGE") ||
		strings.Contains(codeStr, "VENDOR"):
		return "DATABASE"
	case strings.Contains(codeStr, "SEARCH") || strings.Contains(codeStr, "INDEX"):
		return "SEARCH"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
