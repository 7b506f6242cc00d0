package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChangesNew(t *testing.T) {
	changes, err := ParseChanges([]byte(`{"changes":[{"operation":"NEW","filename":"a/b.py","new_content":"print(1)\n"}]}`))
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, OpNew, changes[0].Operation)
	assert.Equal(t, "a/b.py", changes[0].Filename)
}

func TestParseChangesDeleteValidation(t *testing.T) {
	_, err := ParseChanges([]byte(`{"changes":[{"operation":"DELETE","filename":"f.py","start_line":5,"end_line":3}]}`))
	assert.ErrorContains(t, err, "start_line <= end_line")

	changes, err := ParseChanges([]byte(`{"changes":[{"operation":"DELETE","filename":"f.py","start_line":3,"end_line":5}]}`))
	require.NoError(t, err)
	assert.Equal(t, 3, changes[0].StartLine)
	assert.Equal(t, 5, changes[0].EndLine)
}

func TestParseChangesRejectsRetiredOperations(t *testing.T) {
	_, err := ParseChanges([]byte(`{"changes":[{"operation":"MODIFY","filename":"f.py","anchor":"x","new_content":"y"}]}`))
	assert.ErrorContains(t, err, "MODIFY is not supported")

	_, err = ParseChanges([]byte(`{"changes":[{"operation":"RENAME","filename":"f.py"}]}`))
	assert.ErrorContains(t, err, "RENAME is not supported")

	_, err = ParseChanges([]byte(`{"changes":[{"filename":"f.py","insert_after_line":3,"new_content":"x"}]}`))
	assert.ErrorContains(t, err, "insert_after_line is retired")
}

func TestParseChangesUnknownOperation(t *testing.T) {
	_, err := ParseChanges([]byte(`{"changes":[{"operation":"SPLICE","filename":"f.py"}]}`))
	assert.ErrorContains(t, err, `unknown operation "SPLICE"`)
}

func TestParseInsertLocationExactlyOne(t *testing.T) {
	_, err := ParseChanges([]byte(`{"changes":[{"filename":"f.py","new_content":"x","insert_location":{"after_function":"foo","after_marker":"bar"}}]}`))
	assert.ErrorContains(t, err, "exactly one")

	_, err = ParseChanges([]byte(`{"changes":[{"filename":"f.py","new_content":"x","insert_location":{}}]}`))
	assert.ErrorContains(t, err, "exactly one")
}

func TestParseInsertLocationVariants(t *testing.T) {
	changes, err := ParseChanges([]byte(`{"changes":[
		{"filename":"f.py","new_content":"a","insert_location":{"after_function":"A::foo"}},
		{"filename":"f.py","new_content":"b","insert_location":{"within_function":"bar","position_marker":"before_return"}},
		{"filename":"f.py","new_content":"c","insert_location":{"within_function":"bar","position_marker":{"after_line":3}}},
		{"filename":"f.py","new_content":"d","insert_location":{"within_function":"bar","position_marker":{"after_line":"x = 1"}}},
		{"filename":"f.py","new_content":"e","insert_location":{"after_marker":"TODO"}},
		{"filename":"f.py","new_content":"f","insert_location":{"global":"start"}},
		{"filename":"f.py","new_content":"g","insert_location":{"global":true}}
	]}`))
	require.NoError(t, err)
	require.Len(t, changes, 7)

	assert.Equal(t, "A::foo", changes[0].Insert.AfterFunction)
	assert.Equal(t, PosBeforeReturn, changes[1].Insert.Position.Kind)
	assert.Equal(t, 3, changes[2].Insert.Position.AfterLineNum)
	assert.Equal(t, "x = 1", changes[3].Insert.Position.AfterLineText)
	assert.Equal(t, "TODO", changes[4].Insert.AfterMarker)
	assert.Equal(t, "start", changes[5].Insert.Global)
	assert.Equal(t, "end", changes[6].Insert.Global)
}

func TestParseChangesBadIndentHint(t *testing.T) {
	_, err := ParseChanges([]byte(`{"changes":[{"filename":"f.py","new_content":"x","indentation_hint":"wat","insert_location":{"global":"end"}}]}`))
	assert.ErrorContains(t, err, "indentation_hint")
}

func TestParseChangesEmptyEnvelope(t *testing.T) {
	_, err := ParseChanges([]byte(`{"changes":[]}`))
	assert.ErrorContains(t, err, "no changes")
}
