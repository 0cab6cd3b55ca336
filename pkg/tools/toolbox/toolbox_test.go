package toolbox

import (
	"sync"
	"testing"

	"github.com/germanamz/tether/pkg/tools/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postTool() Tool {
	return Tool{
		Name:        "createPost",
		Description: "Publish a status",
		Parameters: schema.Schema{
			Type: schema.Object,
			Properties: map[string]*schema.Schema{
				"status": {Type: schema.String},
			},
			Required: []string{"status"},
		},
	}
}

func TestNew_Empty(t *testing.T) {
	c := New()

	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Tools())
	assert.Empty(t, c.Declarations())
}

func TestCatalog_Lookup(t *testing.T) {
	c := New(postTool())

	got, ok := c.Lookup("createPost")
	require.True(t, ok)
	assert.Equal(t, "Publish a status", got.Description)

	_, ok = c.Lookup("missing")
	assert.False(t, ok)
}

func TestCatalog_LoadReplacesWholesale(t *testing.T) {
	c := New(postTool(), Tool{Name: "search"})

	c.Load([]Tool{{Name: "weather"}})

	assert.Equal(t, 1, c.Len())
	_, ok := c.Lookup("createPost")
	assert.False(t, ok)
	_, ok = c.Lookup("weather")
	assert.True(t, ok)
}

func TestCatalog_LoadDuplicateNames(t *testing.T) {
	c := New(
		Tool{Name: "a", Description: "first"},
		Tool{Name: "b"},
		Tool{Name: "a", Description: "second"},
	)

	tools := c.Tools()
	require.Len(t, tools, 2)
	assert.Equal(t, "a", tools[0].Name)
	assert.Equal(t, "second", tools[0].Description)
	assert.Equal(t, "b", tools[1].Name)
}

func TestCatalog_ToolsIsCopy(t *testing.T) {
	c := New(postTool())

	tools := c.Tools()
	tools[0].Name = "changed"

	_, ok := c.Lookup("createPost")
	assert.True(t, ok)
}

func TestCatalog_Declarations(t *testing.T) {
	c := New(postTool())

	decls := c.Declarations()
	require.Len(t, decls, 1)

	d := decls[0]
	assert.Equal(t, "createPost", d.Name)
	assert.Equal(t, "Publish a status", d.Description)
	assert.Equal(t, schema.Object, d.Parameters.Type)
	assert.Equal(t, []string{"status"}, d.Parameters.Required)
	assert.Equal(t, schema.String, d.Parameters.Properties["status"].Type)
}

func TestTool_DeclarationDefaults(t *testing.T) {
	d := Tool{Name: "ping"}.Declaration()

	assert.Equal(t, schema.Object, d.Parameters.Type)
	assert.NotNil(t, d.Parameters.Properties)
	assert.Empty(t, d.Parameters.Properties)
	assert.NotNil(t, d.Parameters.Required)
	assert.Empty(t, d.Parameters.Required)
}

func TestCatalog_ConcurrentLoadAndRead(t *testing.T) {
	c := New()

	var wg sync.WaitGroup
	wg.Go(func() {
		for range 100 {
			c.Load([]Tool{postTool(), {Name: "b"}})
		}
	})
	wg.Go(func() {
		for range 100 {
			n := len(c.Declarations())
			assert.True(t, n == 0 || n == 2)
		}
	})
	wg.Wait()
}
