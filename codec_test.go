package stash

import "testing"

type codecFixture struct {
	Name  string `json:"name" yaml:"name"`
	Value int    `json:"value" yaml:"value"`
}

func TestCodecs_Decode(t *testing.T) {
	cases := []struct {
		name  string
		codec Codec
		data  string
	}{
		{"json", JSONCodec{}, `{"name": "a", "value": 1}`},
		{"yaml", YAMLCodec{}, "name: a\nvalue: 1"},
		{"yaml accepts json", YAMLCodec{}, `{"name": "a", "value": 1}`},
		{"auto json", AutoCodec{}, "  \n{\"name\": \"a\", \"value\": 1}"},
		{"auto yaml", AutoCodec{}, "name: a\nvalue: 1\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got codecFixture
			if err := tc.codec.Unmarshal([]byte(tc.data), &got); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if got != (codecFixture{Name: "a", Value: 1}) {
				t.Errorf("unexpected result %+v", got)
			}
		})
	}
}

func TestCodecs_RejectInvalid(t *testing.T) {
	cases := []struct {
		name  string
		codec Codec
		data  string
	}{
		{"json", JSONCodec{}, `{not valid json}`},
		{"json rejects yaml", JSONCodec{}, "name: a"},
		{"yaml", YAMLCodec{}, "name: [unclosed"},
		{"auto broken json", AutoCodec{}, `{"name": `},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got codecFixture
			if err := tc.codec.Unmarshal([]byte(tc.data), &got); err == nil {
				t.Errorf("expected error decoding %q", tc.data)
			}
		})
	}
}

func TestCodecs_ContentType(t *testing.T) {
	cases := map[string]Codec{
		"application/json":         JSONCodec{},
		"application/x-yaml":       YAMLCodec{},
		"application/octet-stream": AutoCodec{},
	}
	for want, codec := range cases {
		if got := codec.ContentType(); got != want {
			t.Errorf("%T.ContentType() = %q, want %q", codec, got, want)
		}
	}
}
