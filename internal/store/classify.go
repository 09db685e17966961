package store

import (
	"errors"

	"github.com/aws/smithy-go"
)

// Class separates store failures that are worth retrying from those that
// will fail the same way every time.
type Class int

const (
	// ClassTransient covers throttling, server-side errors, and network
	// failures. Retried with backoff.
	ClassTransient Class = iota
	// ClassFatal covers permission and configuration errors. Never retried.
	ClassFatal
)

func (c Class) String() string {
	if c == ClassFatal {
		return "fatal"
	}
	return "transient"
}

// fatalCodes are S3 error codes that indicate the request can never succeed
// as composed: bad credentials, missing bucket, malformed names.
var fatalCodes = map[string]struct{}{
	"AccessDenied":                 {},
	"AllAccessDisabled":            {},
	"NoSuchBucket":                 {},
	"InvalidBucketName":            {},
	"InvalidAccessKeyId":           {},
	"SignatureDoesNotMatch":        {},
	"AccountProblem":               {},
	"InvalidObjectState":           {},
	"MethodNotAllowed":             {},
	"MalformedXML":                 {},
	"KeyTooLongError":              {},
	"EntityTooLarge":               {},
	"NotSignedUp":                  {},
	"InvalidPayer":                 {},
	"PermanentRedirect":            {},
	"AuthorizationHeaderMalformed": {},
}

// transientCodes are S3 error codes for throttling and server-side trouble.
var transientCodes = map[string]struct{}{
	"SlowDown":             {},
	"Throttling":           {},
	"ThrottlingException":  {},
	"RequestLimitExceeded": {},
	"RequestTimeout":       {},
	"InternalError":        {},
	"ServiceUnavailable":   {},
	"OperationAborted":     {},
	"BadDigest":            {},
}

// Classify decides whether a store failure should be retried. Non-API
// errors (connection resets, timeouts, DNS failures) are transient: the
// network may come back. API errors are classified by code, and unknown
// codes by fault origin — unknown server faults retry, unknown client
// faults do not.
func Classify(err error) Class {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return ClassTransient
	}

	code := apiErr.ErrorCode()
	if _, ok := fatalCodes[code]; ok {
		return ClassFatal
	}
	if _, ok := transientCodes[code]; ok {
		return ClassTransient
	}

	if apiErr.ErrorFault() == smithy.FaultServer {
		return ClassTransient
	}
	return ClassFatal
}
