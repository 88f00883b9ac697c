package rosbag

import (
	"bytes"
	"errors"
	"testing"
)

func TestDecoderCheckVersion(t *testing.T) {
	testCases := []struct {
		Name string
		Raw  []byte
		Err  error
	}{
		{
			Name: "Missing Newline character",
			Raw:  []byte("#ROSBAG V2.0"),
			Err:  ErrInvalidMagic,
		},
		{
			Name: "Not A Bag",
			Raw:  []byte("\x89MCAP0\r\nxxxxx"),
			Err:  ErrInvalidMagic,
		},
		{
			Name: "Unsupported Version",
			Raw:  []byte("#ROSBAG V1.2\n"),
			Err:  ErrUnsupportedVersion,
		},
		{
			Name: "Expected Version Format",
			Raw:  []byte("#ROSBAG V2.0\n"),
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.Name, func(t *testing.T) {
			in := bytes.NewReader(testCase.Raw)
			err := NewDecoder(in).checkVersion()

			if testCase.Err != nil && !errors.Is(err, testCase.Err) {
				t.Fatalf("expected %v, got %v", testCase.Err, err)
			} else if testCase.Err == nil && err != nil {
				t.Fatal("expected to succeed")
			}
		})
	}
}

func TestIterateHeaderFields(t *testing.T) {
	var header []byte
	for _, field := range []string{"op=\x02", "topic=/cam=left", "empty="} {
		header = append(header, byte(len(field)), 0, 0, 0)
		header = append(header, field...)
	}

	got := make(map[string]string)
	err := iterateHeaderFields(header, func(key, value []byte) bool {
		got[string(key)] = string(value)
		return true
	})
	if err != nil {
		t.Fatal(err)
	}

	expected := map[string]string{"op": "\x02", "topic": "/cam=left", "empty": ""}
	for k, v := range expected {
		if got[k] != v {
			t.Fatalf("%s: expected %q, got %q", k, v, got[k])
		}
	}

	if err := iterateHeaderFields(header[:len(header)-1], func(key, value []byte) bool { return true }); err == nil {
		t.Fatal("expected a truncated header to fail")
	}

	if _, err := findHeaderField(header, "missing"); !errors.Is(err, errFieldNotFound) {
		t.Fatalf("expected errFieldNotFound, got %v", err)
	}
}
