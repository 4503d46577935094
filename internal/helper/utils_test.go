package helper

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUUID(t *testing.T) {
	a, err := GenerateUUID()
	require.NoError(t, err)
	b, err := GenerateUUID()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	_, err = uuid.Parse(a)
	assert.NoError(t, err)
}

func TestPrettyPrint(t *testing.T) {
	var buf bytes.Buffer
	PrettyPrint(&buf, map[string]string{"answer": "ship small changes"})
	assert.Equal(t, "{\n  \"answer\": \"ship small changes\"\n}\n", buf.String())

	buf.Reset()
	PrettyPrint(&buf, make(chan int))
	assert.Empty(t, buf.String())
}
