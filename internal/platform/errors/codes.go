// Package errors provides structured error handling with i18n support.
package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Lookup errors
	CodeNotFound Code = "NOT_FOUND"

	// Deploy errors
	CodeDeployRequestInvalid     Code = "DEPLOY_REQUEST_INVALID"
	CodeMissionAlreadyDeployed   Code = "MISSION_ALREADY_DEPLOYED"
	CodeMissionPrerequisiteUnmet Code = "MISSION_PREREQUISITE_NOT_MET"
	CodeMissionInvalidApproach   Code = "MISSION_INVALID_APPROACH"

	// Finalization errors
	CodeConcurrentFinalization    Code = "DEPLOYMENT_CONCURRENT_FINALIZATION"
	CodeDistributorPartialFailure Code = "DEPLOYMENT_DISTRIBUTOR_PARTIAL_FAILURE"
	CodeDeploymentNotDue          Code = "DEPLOYMENT_NOT_DUE"

	// Catalog errors
	CodeCatalogInvalid Code = "CATALOG_INVALID"

	// Auth errors
	CodeUnauthenticated  Code = "UNAUTHENTICATED"
	CodePermissionDenied Code = "PERMISSION_DENIED"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeDeployRequestInvalid,
		CodeMissionInvalidApproach,
		CodeCatalogInvalid:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeMissionPrerequisiteUnmet,
		CodeDeploymentNotDue:
		return codes.FailedPrecondition

	// NotFound - resource doesn't exist
	case CodeNotFound:
		return codes.NotFound

	// AlreadyExists - unique resource constraint
	case CodeMissionAlreadyDeployed:
		return codes.AlreadyExists

	// Aborted - lost a concurrent race, caller may treat as handled
	case CodeConcurrentFinalization:
		return codes.Aborted

	case CodeUnauthenticated:
		return codes.Unauthenticated
	case CodePermissionDenied:
		return codes.PermissionDenied

	default:
		return codes.Internal
	}
}

// HTTPStatus maps domain codes to HTTP response statuses.
func (c Code) HTTPStatus() int {
	switch c.GRPCCode() {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict
	case codes.FailedPrecondition:
		return http.StatusUnprocessableEntity
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
