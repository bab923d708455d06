package dynamodb

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angryss/idp/domain/core/valueobjects"
)

func TestTimeFormatIsByteComparable(t *testing.T) {
	// RFC 3339 with trailing-zero trimming would sort ".5" before ".125";
	// the fixed-width form must not.
	early := time.Date(2026, 1, 2, 3, 4, 5, 125_000_000, time.UTC)
	late := time.Date(2026, 1, 2, 3, 4, 5, 500_000_000, time.UTC)

	assert.True(t, formatTime(early) < formatTime(late))
	assert.Equal(t, "2026-01-02T03:04:05.125000000Z", formatTime(early))
	assert.Equal(t, "2026-01-02T03:04:05.000000000Z", formatTime(early.Truncate(time.Second)))

	// Every rendered timestamp has the same width.
	assert.Len(t, formatTime(late), len(formatTime(early)))
}

func TestTimeRoundTrip(t *testing.T) {
	orig := time.Date(2026, 7, 15, 23, 59, 59, 987_654_321, time.FixedZone("CET", 3600))
	parsed, err := parseTime(formatTime(orig))
	require.NoError(t, err)
	assert.True(t, parsed.Equal(orig))
	assert.Equal(t, time.UTC, parsed.Location())

	// Plain RFC 3339 written by older records still parses.
	parsed, err = parseTime("2024-01-01T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, 2024, parsed.Year())

	_, err = parseTime("yesterday")
	assert.Error(t, err)
}

func TestFormatBool(t *testing.T) {
	assert.Equal(t, "true", formatBool(true))
	assert.Equal(t, "false", formatBool(false))
	assert.True(t, parseBool("true"))
	assert.False(t, parseBool("false"))
	assert.False(t, parseBool(""))
}

func TestConfigAttributeRoundTrip(t *testing.T) {
	replicas, err := valueobjects.Number("3")
	require.NoError(t, err)
	// Past float64 precision; the numeric text must survive untouched.
	sequence, err := valueobjects.Number("9007199254740993")
	require.NoError(t, err)

	doc := valueobjects.ConfigDoc{
		"region":   valueobjects.String("eu-wešt-1 ✓"),
		"replicas": replicas,
		"sequence": sequence,
		"debug":    valueobjects.Bool(false),
		"fallback": valueobjects.Null(),
		"zones":    valueobjects.List(valueobjects.String("a"), valueobjects.String("b")),
		"limits": valueobjects.Map(map[string]valueobjects.ConfigValue{
			"cpu": valueobjects.String("500m"),
		}),
	}

	av, err := configToAttribute(doc)
	require.NoError(t, err)

	m, ok := av.(*types.AttributeValueMemberM)
	require.True(t, ok)
	seq, ok := m.Value["sequence"].(*types.AttributeValueMemberN)
	require.True(t, ok)
	assert.Equal(t, "9007199254740993", seq.Value)

	back, err := attributeToConfig(av)
	require.NoError(t, err)
	assert.True(t, valueobjects.Map(doc).Equal(valueobjects.Map(back)))
}

func TestConfigAttributeEmptyDocument(t *testing.T) {
	av, err := configToAttribute(nil)
	require.NoError(t, err)
	_, isNull := av.(*types.AttributeValueMemberNULL)
	assert.True(t, isNull)

	doc, err := attributeToConfig(av)
	require.NoError(t, err)
	assert.Nil(t, doc)

	doc, err = attributeToConfig(nil)
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestConfigAttributeRejectsForeignShapes(t *testing.T) {
	_, err := attributeToConfig(&types.AttributeValueMemberS{Value: "not a map"})
	assert.Error(t, err)

	_, err = attributeToValue(&types.AttributeValueMemberB{Value: []byte{0x01}})
	assert.Error(t, err)
}
