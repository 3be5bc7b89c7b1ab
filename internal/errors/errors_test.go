package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOf_RecognizesEveryTaxonomyMember(t *testing.T) {
	cases := []struct {
		err  error
		kind Kind
	}{
		{NewClassificationError("a.go", errors.New("x")), KindClassification},
		{NewBackendError(BackendUnavailable, "go", nil), KindBackend},
		{NewPatternError(PatternInvalidSpec, "p1", "go", nil), KindPattern},
		{NewRecoveryError(RecoveryTimeout, "p1", "partial_match"), KindRecovery},
		{NewCacheError(CacheOversize, "k1"), KindCache},
		{NewCancelledError("parse"), KindCancelled},
	}
	for _, c := range cases {
		require.Equal(t, c.kind, KindOf(c.err))
	}
}

func TestKindOf_UnrecognizedErrorReturnsEmptyKind(t *testing.T) {
	require.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestClassificationError_UnwrapsUnderlying(t *testing.T) {
	cause := errors.New("prefix unreadable")
	err := NewClassificationError("a.go", cause)
	require.ErrorIs(t, err, cause)
}

func TestBackendError_ErrorMessageOmitsNilUnderlying(t *testing.T) {
	err := NewBackendError(BackendUnavailable, "dockerfile", nil)
	require.Equal(t, "backend unavailable for dockerfile", err.Error())
}

func TestMultiError_FiltersNilsAndReportsSingularly(t *testing.T) {
	me := NewMultiError([]error{nil, nil})
	require.Equal(t, "no errors", me.Error())

	one := NewMultiError([]error{nil, NewCancelledError("parse")})
	require.Len(t, one.Errors, 1)
	require.Equal(t, "cancelled at stage parse", one.Error())
}

func TestMultiError_UnwrapExposesEveryError(t *testing.T) {
	a, b := NewCancelledError("classify"), NewCancelledError("parse")
	me := NewMultiError([]error{a, b})

	unwrapped := me.Unwrap()
	require.Equal(t, []error{a, b}, unwrapped)
}
