package signing

import "testing"

func TestSum(t *testing.T) {
	// sha256 of the empty string
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Sum(nil); got != want {
		t.Errorf("Sum(nil) = %q, want %q", got, want)
	}
}

func TestChecksums(t *testing.T) {
	var sums Checksums
	if sums.Len() != 0 || len(sums.Bytes()) != 0 {
		t.Fatalf("zero Checksums = %q", sums.Bytes())
	}

	sums.Add("DIRACOS-2.1-Linux-x86_64.sh", []byte("a"))
	sums.Add("DIRACOS-2.1-Linux-aarch64.sh", []byte("b"))
	sums.Add("DIRACOS-2.1-Linux-x86_64.sh", nil)

	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855  DIRACOS-2.1-Linux-x86_64.sh\n" +
		"3e23e8160039594a33894f6564e1b1348bbd7a0088d42c4acb73eeaed59c009d  DIRACOS-2.1-Linux-aarch64.sh\n"
	if got := string(sums.Bytes()); got != want {
		t.Errorf("Bytes() =\n%s\nwant\n%s", got, want)
	}
	if sums.Len() != 2 {
		t.Errorf("Len() = %d, want 2", sums.Len())
	}
}
