package errors

import (
	"fmt"
	"net/http"
)

// Code represents an error code with HTTP status and message
type Code struct {
	Code    int    // Business error code
	Status  int    // HTTP status code
	Message string // Error message
}

// Error codes for different modules
const (
	// Success
	Success = 0

	// Common errors (1000-1999)
	ErrInternalServer  = 1000
	ErrInvalidParams   = 1001
	ErrNotFound        = 1002
	ErrUnauthorized    = 1003
	ErrForbidden       = 1004
	ErrConflict        = 1005
	ErrTooManyRequests = 1006
	ErrBadRequest      = 1007
	ErrServiceUnavail  = 1008

	// Auth errors (2000-2999)
	ErrAuthInvalidToken = 2000
	ErrAuthTokenExpired = 2001

	// Upload errors (4000-4999)
	ErrUploadNotFound        = 4000
	ErrUploadInvalidParams   = 4001
	ErrUploadForbidden       = 4002
	ErrUploadChunkOutOfRange = 4003
	ErrUploadIncomplete      = 4004

	// Storage node errors (4100-4199)
	ErrStorageAppendFailed = 4100
	ErrStorageFileMissing  = 4101
	ErrStorageSizeMismatch = 4102
	ErrStorageUnavailable  = 4103
)

// codeMap maps error codes to their details
var codeMap = map[int]Code{
	Success: {Success, http.StatusOK, "Success"},

	// Common errors
	ErrInternalServer:  {ErrInternalServer, http.StatusInternalServerError, "Internal server error"},
	ErrInvalidParams:   {ErrInvalidParams, http.StatusBadRequest, "Invalid parameters"},
	ErrNotFound:        {ErrNotFound, http.StatusNotFound, "Resource not found"},
	ErrUnauthorized:    {ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
	ErrForbidden:       {ErrForbidden, http.StatusForbidden, "Forbidden"},
	ErrConflict:        {ErrConflict, http.StatusConflict, "Resource conflict"},
	ErrTooManyRequests: {ErrTooManyRequests, http.StatusTooManyRequests, "Too many requests"},
	ErrBadRequest:      {ErrBadRequest, http.StatusBadRequest, "Bad request"},
	ErrServiceUnavail:  {ErrServiceUnavail, http.StatusServiceUnavailable, "Service unavailable"},

	// Auth errors
	ErrAuthInvalidToken: {ErrAuthInvalidToken, http.StatusUnauthorized, "Invalid or expired token"},
	ErrAuthTokenExpired: {ErrAuthTokenExpired, http.StatusUnauthorized, "Token expired"},

	// Upload errors
	ErrUploadNotFound:        {ErrUploadNotFound, http.StatusNotFound, "Upload session not found"},
	ErrUploadInvalidParams:   {ErrUploadInvalidParams, http.StatusBadRequest, "Invalid upload parameters"},
	ErrUploadForbidden:       {ErrUploadForbidden, http.StatusForbidden, "Unauthorized access to upload session"},
	ErrUploadChunkOutOfRange: {ErrUploadChunkOutOfRange, http.StatusBadRequest, "Chunk index out of range"},
	ErrUploadIncomplete:      {ErrUploadIncomplete, http.StatusBadRequest, "Upload is not complete"},

	// Storage node errors
	ErrStorageAppendFailed: {ErrStorageAppendFailed, http.StatusBadGateway, "Storage node append failed"},
	ErrStorageFileMissing:  {ErrStorageFileMissing, http.StatusConflict, "File missing on storage node"},
	ErrStorageSizeMismatch: {ErrStorageSizeMismatch, http.StatusConflict, "File size mismatch on storage node"},
	ErrStorageUnavailable:  {ErrStorageUnavailable, http.StatusBadGateway, "Storage node unavailable"},
}

// GetCode returns the Code for a given error code
func GetCode(code int) Code {
	if c, ok := codeMap[code]; ok {
		return c
	}
	return codeMap[ErrInternalServer]
}

// GetHTTPStatus returns HTTP status for a given error code
func GetHTTPStatus(code int) int {
	return GetCode(code).Status
}

// GetMessage returns the message for a given error code
func GetMessage(code int) string {
	return GetCode(code).Message
}

// IsSuccess checks if the code represents success
func IsSuccess(code int) bool {
	return code == Success
}

// IsClientError checks if the code represents a client error (4xx)
func IsClientError(code int) bool {
	status := GetHTTPStatus(code)
	return status >= 400 && status < 500
}

// IsServerError checks if the code represents a server error (5xx)
func IsServerError(code int) bool {
	status := GetHTTPStatus(code)
	return status >= 500
}

// FormatError formats an error message with code
func FormatError(code int, details ...string) string {
	msg := GetMessage(code)
	if len(details) > 0 && details[0] != "" {
		return fmt.Sprintf("%s: %s", msg, details[0])
	}
	return msg
}
