// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeInferenceModelLoadFailure       Code = "inference.model.load.failure"
	CodeInferenceSessionLost            Code = "inference.session.lost"
	CodeInferenceSessionNotInitialized  Code = "inference.session.not_initialized"
	CodeInferenceSessionConflict        Code = "inference.session.model.conflict"
	CodeInferenceQueryInvalidInput      Code = "inference.query.invalid_input"
	CodeInferenceEngineUpstreamFailure  Code = "inference.engine.upstream.failure"
	CodeInferenceEngineResponseInvalid  Code = "inference.engine.response.invalid"
	CodeInferenceStateTransitionInvalid Code = "inference.state.transition.invalid"
	CodeInferenceEngineUnsupported      Code = "inference.engine.unsupported"

	CodeKnowledgeContextPartial       Code = "knowledge.context.partial"
	CodeKnowledgeSourceNotFound       Code = "knowledge.source.not_found"
	CodeKnowledgeSourceConflict       Code = "knowledge.source.conflict"
	CodeKnowledgeSourceInvalidInput   Code = "knowledge.source.invalid_input"
	CodeKnowledgeSourceReadOnly       Code = "knowledge.source.write.forbidden"
	CodeKnowledgeQuestionInvalidInput Code = "knowledge.question.invalid_input"
	CodeKnowledgeCatalogListFailure   Code = "knowledge.catalog.list.failure"
	CodeKnowledgeBuiltinParseInvalid  Code = "knowledge.builtin.parse.invalid"
	CodeKnowledgeEncodingUnavailable  Code = "knowledge.encoding.load.unavailable"

	CodeClusterContractViolation Code = "cluster.contract.violation"

	CodeMutationRollbackFailure      Code = "mutation.rollback.failure"
	CodeMutationCommitFailure        Code = "mutation.commit.failure"
	CodeMutationSnapshotPending      Code = "mutation.snapshot.pending.conflict"
	CodeMutationSnapshotWriteFailure Code = "mutation.snapshot.write.failure"
	CodeMutationSnapshotNotFound     Code = "mutation.snapshot.not_found"
	CodeMutationSnapshotCorrupt      Code = "mutation.snapshot.corrupt.invalid"
	CodeMutationSnapshotNotPending   Code = "mutation.snapshot.state.invalid"
	CodeMutationOrganizeFailure      Code = "mutation.organize.failure"

	CodeStoreEntityNotFound     Code = "store.entity.get.not_found"
	CodeStoreDatabaseFailure    Code = "store.database.failure"
	CodeStoreBackendUnsupported Code = "store.backend.unsupported"
	CodeStoreConflict           Code = "store.conflict"
	CodeStoreInvalidInput       Code = "store.invalid_input"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeSecretResolveFailure Code = "secret.resolve.failure"
	CodeSecretInvalidInput   Code = "secret.input.invalid"
	CodeSecretNotFound       Code = "secret.get.not_found"
	CodeSecretStoreFailure   Code = "secret.store.failure"

	CodeServerRequestInvalid  Code = "server.request.invalid"
	CodeServerInternalFailure Code = "server.internal.failure"
	CodeServerEntityNotFound  Code = "server.entity.not_found"
	CodeServerConfigInvalid   Code = "server.config.invalid"
	CodeServerStartFailure    Code = "server.start.failure"
	CodeServerShutdownFailure Code = "server.shutdown.failure"

	CodeCLISetupFailure Code = "cli.setup.failure"
	CodeCLIInputInvalid Code = "cli.input.invalid"
	CodeCLIServerDown   Code = "cli.server.unavailable"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldModelPath(value string) Attr {
	return Field("model_path", value)
}

func FieldSourceID(value string) Attr {
	return Field("source_id", value)
}

func FieldSnapshotID(value string) Attr {
	return Field("snapshot_id", value)
}

func FieldBackend(value string) Attr {
	return Field("backend", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// Relabel attaches err as the cause of a new error reporting code. Wrap keeps
// the innermost code of a chain; Relabel is for category errors that must stay
// distinguishable from whatever caused them. errors.Is still reaches err.
func Relabel(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return &relabeled{
		head:  oops.Code(code).With(flatten(fields)...).New(msg),
		cause: err,
	}
}

type relabeled struct {
	head  error
	cause error
}

func (r *relabeled) Error() string { return r.head.Error() + ": " + r.cause.Error() }

func (r *relabeled) Unwrap() []error { return []error{r.head, r.cause} }

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeServerInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsConflict(err error) bool {
	return reason(CodeOf(err)) == "conflict"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

func IsForbidden(err error) bool {
	return reason(CodeOf(err)) == "forbidden"
}

func IsUpstreamFailure(err error) bool {
	code := CodeOf(err)
	return strings.Contains(string(code), "upstream") && reason(code) == "failure"
}

// IsModelLoad reports a failed model load. The attempt is retryable.
func IsModelLoad(err error) bool {
	return HasCode(err, CodeInferenceModelLoadFailure)
}

// IsSessionLost reports that the probe and the single reinit both failed.
func IsSessionLost(err error) bool {
	return HasCode(err, CodeInferenceSessionLost)
}

func IsPartialContext(err error) bool {
	return HasCode(err, CodeKnowledgeContextPartial)
}

func IsContractViolation(err error) bool {
	return HasCode(err, CodeClusterContractViolation)
}

// IsRollbackFailure reports that restoring a snapshot failed, i.e. both the
// change and the backup may be lost.
func IsRollbackFailure(err error) bool {
	return HasCode(err, CodeMutationRollbackFailure)
}

// IsCommitFailure reports that a mutation was applied but its snapshot could
// not be marked committed. The entries are intact.
func IsCommitFailure(err error) bool {
	return HasCode(err, CodeMutationCommitFailure)
}

func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsConflict(err):
		return http.StatusConflict
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsForbidden(err):
		return http.StatusForbidden
	case IsSessionLost(err), IsModelLoad(err), HasCode(err, CodeInferenceSessionNotInitialized):
		return http.StatusServiceUnavailable
	case IsUpstreamFailure(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	joined := stderrors.Join(errs...)
	if joined == nil {
		return nil
	}
	return oops.Code(CodeServerInternalFailure).Wrap(joined)
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
