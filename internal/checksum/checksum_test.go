package checksum

import "testing"

func TestSubmission_DistinguishesInputs(t *testing.T) {
	base := Submission([]byte("ref"), []byte("ans"), 2)
	if base != Submission([]byte("ref"), []byte("ans"), 2) {
		t.Error("fingerprint is not deterministic")
	}
	for name, other := range map[string]string{
		"semitones": Submission([]byte("ref"), []byte("ans"), 3),
		"student":   Submission([]byte("ref"), []byte("ans!"), 2),
		"boundary":  Submission([]byte("refa"), []byte("ns"), 2),
	} {
		if other == base {
			t.Errorf("%s change did not alter the fingerprint", name)
		}
	}
}

func TestSum(t *testing.T) {
	const emptySHA = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Sum(nil); got != emptySHA {
		t.Errorf("Sum(nil) = %s", got)
	}
}
