package blueprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReference_BareName(t *testing.T) {
	ref, err := ParseReference("ScriptProducer")
	require.NoError(t, err)
	assert.Equal(t, "ScriptProducer", ref.Node().Name)
	assert.Empty(t, ref.Node().Dims)
	assert.Equal(t, "", ref.NamespacePath())
}

func TestParseReference_SingleBracket(t *testing.T) {
	ref, err := ParseReference("ImagePromptProducer[segment]")
	require.NoError(t, err)
	assert.Equal(t, "ImagePromptProducer", ref.Node().Name)
	assert.Equal(t, []string{"segment"}, ref.Node().Dims)
}

func TestParseReference_MultipleBracketsAndNamespace(t *testing.T) {
	ref, err := ParseReference("audio.AudioProducer[segment][image]")
	require.NoError(t, err)
	require.Len(t, ref.Path, 2)
	assert.Equal(t, "audio", ref.Path[0].Name)
	assert.Equal(t, "AudioProducer", ref.Node().Name)
	assert.Equal(t, []string{"segment", "image"}, ref.Node().Dims)
	assert.Equal(t, "audio", ref.NamespacePath())
}

func TestParseReference_Malformed(t *testing.T) {
	_, err := ParseReference("")
	assert.ErrorIs(t, err, ErrBlueprintParse)

	_, err = ParseReference("Bad[Name")
	assert.ErrorIs(t, err, ErrBlueprintParse)
}
