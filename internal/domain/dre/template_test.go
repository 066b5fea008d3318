package dre

import (
	"errors"
	"strings"
	"testing"

	"github.com/erp/dre/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTemplate(t *testing.T) {
	tpl, err := NewTemplate("  Monthly DRE  ", "finance", sampleTemplate().Items)
	require.NoError(t, err)
	assert.Equal(t, "Monthly DRE", tpl.Name)
	assert.Equal(t, VisibilityPrivate, tpl.Visibility)
	assert.Equal(t, 1, tpl.GetVersion())

	item, ok := tpl.Item("GP")
	require.True(t, ok)
	assert.Equal(t, "[3] - [4.01]", item.Formula)

	for _, name := range []string{"", "   ", strings.Repeat("x", 201)} {
		_, err := NewTemplate(name, "finance", nil)
		var de *shared.DomainError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, "INVALID_NAME", de.Code)
	}
}

func TestTemplate_Mutations(t *testing.T) {
	tpl, err := NewTemplate("DRE", "finance", nil)
	require.NoError(t, err)

	require.NoError(t, tpl.Rename("Quarterly DRE"))
	assert.Equal(t, "Quarterly DRE", tpl.Name)
	assert.Error(t, tpl.Rename(""))

	tpl.ReplaceItems(sampleTemplate().Items)
	assert.Len(t, tpl.Items, 10)

	require.NoError(t, tpl.SetVisibility(VisibilityPublic))
	assert.Error(t, tpl.SetVisibility("everyone"))
	assert.Equal(t, VisibilityPublic, tpl.Visibility)

	tpl.Describe("  monthly close  ", []string{"schedule:daily"})
	assert.Equal(t, "monthly close", tpl.Description)
	assert.Equal(t, []string{"schedule:daily"}, tpl.Tags)
	assert.Equal(t, 5, tpl.GetVersion())
}

func TestParseLineItemKind(t *testing.T) {
	k, err := ParseLineItemKind(" Revenue ")
	require.NoError(t, err)
	assert.Equal(t, KindRevenue, k)

	_, err = ParseLineItemKind("asset")
	assert.Error(t, err)
}
