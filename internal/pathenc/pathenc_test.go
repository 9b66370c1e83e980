package pathenc

import "testing"

func TestEncode(t *testing.T) {
	tests := []struct {
		name        string
		typeTag     string
		signature   string
		uniqueIndex string
		want        string
	}{
		{
			name:      "basic four-char fanout",
			typeTag:   "Patient",
			signature: "abcd1234",
			want:      "Patient/a/b/c/d/Patient-abcd1234.json",
		},
		{
			name:        "unique index name embedded",
			typeTag:     "Patient",
			signature:   "a@example.com",
			uniqueIndex: "by_email",
			want:        "Patient/a/@/e/x/Patient-by_email-a@example.com.json",
		},
		{
			name:      "shorter signature yields shorter fanout",
			typeTag:   "obj",
			signature: "ab",
			want:      "obj/a/b/obj-ab.json",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Encode(tt.typeTag, tt.signature, tt.uniqueIndex)
			if got != tt.want {
				t.Errorf("Encode(%q,%q,%q) = %q, want %q", tt.typeTag, tt.signature, tt.uniqueIndex, got, tt.want)
			}
		})
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	// Two documents with the same type and signature collide by design:
	// that is how unique indices overwrite (§3 "Path").
	a := Encode("Patient", "dup-sig", "by_email")
	b := Encode("Patient", "dup-sig", "by_email")
	if a != b {
		t.Errorf("Encode should be a pure function of its inputs: %q != %q", a, b)
	}
}
