package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testVocab  = "../../testdata/vocab.json"
	testMerges = "../../testdata/merges.txt"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestEncodeCommand(t *testing.T) {
	out, err := runCommand(t,
		"encode", "--vocab", testVocab, "--merges", testMerges, "Hello, world!")
	require.NoError(t, err)
	assert.Equal(t, "[0 12 7 17 8]\n", out)
}

func TestEncodeCommandShowTokens(t *testing.T) {
	out, err := runCommand(t,
		"encode", "--vocab", testVocab, "--merges", testMerges, "--show-tokens", "Hello, world!")
	require.NoError(t, err)
	assert.Contains(t, out, "[0 12 7 17 8]\n")
	assert.Contains(t, out, "H|ello|,|Ġworld|!")
}

func TestEncodeCommandJSON(t *testing.T) {
	out, err := runCommand(t,
		"encode", "--vocab", testVocab, "--merges", testMerges, "--json", "Hello, world!")
	require.NoError(t, err)
	assert.Contains(t, out, `"ids":[0,12,7,17,8]`)
}

func TestEncodeCommandStdin(t *testing.T) {
	cmd := NewRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetIn(strings.NewReader("Hello, world!\n"))
	cmd.SetArgs([]string{"encode", "--vocab", testVocab, "--merges", testMerges})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "[0 12 7 17 8]\n", out.String())
}

func TestEncodeCommandMissingMerges(t *testing.T) {
	_, err := runCommand(t, "encode", "--vocab", testVocab, "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "together")
}

func TestDecodeCommand(t *testing.T) {
	out, err := runCommand(t,
		"decode", "--vocab", testVocab, "--merges", testMerges, "0", "12", "7", "17", "8")
	require.NoError(t, err)
	assert.Equal(t, "Hello, world!\n", out)
}

func TestDecodeCommandInvalidID(t *testing.T) {
	_, err := runCommand(t,
		"decode", "--vocab", testVocab, "--merges", testMerges, "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token id")
}

func TestFetchCommandRequiresModel(t *testing.T) {
	_, err := runCommand(t, "fetch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--model is required")
}

func TestFormatIDs(t *testing.T) {
	assert.Equal(t, "[]", formatIDs(nil))
	assert.Equal(t, "[1]", formatIDs([]uint32{1}))
	assert.Equal(t, "[15496 11 995 0]", formatIDs([]uint32{15496, 11, 995, 0}))
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs([]string{"0", "42"})
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 42}, ids)

	_, err = parseIDs([]string{"-1"})
	assert.Error(t, err)

	_, err = parseIDs([]string{"4294967296"})
	assert.Error(t, err)
}

func TestInputText(t *testing.T) {
	text, err := inputText([]string{"Hello,", "world!"}, strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, "Hello, world!", text)

	text, err = inputText(nil, strings.NewReader("from stdin\n"))
	require.NoError(t, err)
	assert.Equal(t, "from stdin", text)
}
