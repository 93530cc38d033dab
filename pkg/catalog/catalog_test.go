package catalog_test

import (
	"context"
	"testing"

	"github.com/aretw0/colloquy/pkg/catalog"
	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/aretw0/colloquy/pkg/execution"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hello(ctx context.Context, d execution.Dialogue, param any) (domain.Turn, error) {
	return "hello", nil
}

func TestCatalog(t *testing.T) {
	c := catalog.New()
	c.Register("zeta", "last", hello)
	c.Register("alpha", "first", hello)

	assert.Equal(t, []string{"alpha", "zeta"}, c.Names())
	assert.Equal(t, "first", c.Entries()[0].Description)

	proc, err := c.Lookup("alpha")
	require.NoError(t, err)
	turn, err := proc(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", turn)

	_, err = c.Lookup("missing")
	assert.ErrorIs(t, err, domain.ErrProcedureNotFound)
}
