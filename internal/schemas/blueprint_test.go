package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestProducerDecl_YAMLRoundTripsUnknownFields(t *testing.T) {
	src := `
name: ImageProducer
provider: stub
aspectRatio: "16:9"
seed: 42
`
	var p ProducerDecl
	require.NoError(t, yaml.Unmarshal([]byte(src), &p))
	assert.Equal(t, "ImageProducer", p.Name)
	assert.Equal(t, "stub", p.Provider)
	assert.Equal(t, "16:9", p.ExtraFields["aspectRatio"])
	assert.EqualValues(t, 42, p.ExtraFields["seed"])

	out, err := yaml.Marshal(p)
	require.NoError(t, err)

	var roundTripped ProducerDecl
	require.NoError(t, yaml.Unmarshal(out, &roundTripped))
	assert.Equal(t, p.Name, roundTripped.Name)
	assert.Equal(t, p.ExtraFields["aspectRatio"], roundTripped.ExtraFields["aspectRatio"])
	assert.EqualValues(t, p.ExtraFields["seed"], roundTripped.ExtraFields["seed"])
}

func TestProducerDecl_NoExtraFieldsLeavesExtraFieldsNil(t *testing.T) {
	var p ProducerDecl
	require.NoError(t, yaml.Unmarshal([]byte("name: P\nprovider: stub\n"), &p))
	assert.Nil(t, p.ExtraFields)
}
