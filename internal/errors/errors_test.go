package errors

import (
	"errors"
	"testing"
)

func TestErrorMessageWithoutCause(t *testing.T) {
	err := New(KindDbDoesNotExist, "mydb")
	want := "DbDoesNotExist: mydb"
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
}

func TestErrorMessageWithCause(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(KindWalError, "flush", cause)
	want := "WalError: flush: boom"
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
	if err.Unwrap() != cause {
		t.Fatalf("expected Unwrap to return the original cause")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to see through Unwrap to the cause")
	}
}

func TestKindStringKnownAndUnknown(t *testing.T) {
	cases := map[Kind]string{
		KindParseError:         "ParseError",
		KindColumnTypeMismatch: "ColumnTypeMismatch",
		KindCatalogUpdateError: "CatalogUpdateError",
		KindWalError:           "WalError",
		KindDbDoesNotExist:     "DbDoesNotExist",
		KindTableDoesNotExist:  "TableDoesNotExist",
		KindColumnDoesNotExist: "ColumnDoesNotExist",
		KindNoWriteInReadOnly:  "NoWriteInReadOnly",
		Kind(999):              "Unknown",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}

func TestSentinelsAreDistinctAndComparable(t *testing.T) {
	sentinels := []error{
		ErrDbDoesNotExist, ErrTableDoesNotExist, ErrColumnDoesNotExist, ErrNoWriteInReadOnly,
		ErrWalClosed, ErrWalUploadFailed, ErrCorruptRecord,
		ErrCatalogLoad, ErrSnapshotLoad, ErrPersistFailed,
		ErrDbExists, ErrCacheExists, ErrTableBufferDrained,
	}
	seen := make(map[error]bool, len(sentinels))
	for _, s := range sentinels {
		if seen[s] {
			t.Fatalf("duplicate sentinel error value: %v", s)
		}
		seen[s] = true
		if s != s {
			t.Fatalf("sentinel %v is not self-equal under ==", s)
		}
	}
}
