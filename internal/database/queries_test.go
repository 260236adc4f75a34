package database

import (
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	queryHeader = regexp.MustCompile(`(?m)^-- name: (\w+) `)
	positional  = regexp.MustCompile(`\$\d+`)
	namedArg    = regexp.MustCompile(`sqlc\.arg\((\w+)\)|@(\w+)`)
)

// generatedQueries maps each query name to the SQL compiled into this package.
var generatedQueries = map[string]string{
	"InsertIngestionRun":          insertIngestionRun,
	"FinishIngestionRun":          finishIngestionRun,
	"ListIngestionRuns":           listIngestionRuns,
	"TryAdvisoryLock":             tryAdvisoryLock,
	"AdvisoryUnlock":              advisoryUnlock,
	"InsertMappingTemplate":       insertMappingTemplate,
	"ListMappingTemplates":        listMappingTemplates,
	"DeleteMappingTemplate":       deleteMappingTemplate,
	"GetCurrentPrice":             getCurrentPrice,
	"ClosePrice":                  closePrice,
	"InsertPrice":                 insertPrice,
	"ListPriceHistory":            listPriceHistory,
	"GetPriceAt":                  getPriceAt,
	"ListPricingRules":            listPricingRules,
	"InsertPricingRule":           insertPricingRule,
	"DeletePricingRule":           deletePricingRule,
	"GetPricingSettings":          getPricingSettings,
	"UpsertPricingSettings":       upsertPricingSettings,
	"UpsertStockLevel":            upsertStockLevel,
	"GetStockLevel":               getStockLevel,
	"GetSupplierProductForUpdate": getSupplierProductForUpdate,
	"GetSupplierProduct":          getSupplierProduct,
	"InsertSupplierProduct":       insertSupplierProduct,
	"UpdateSupplierProduct":       updateSupplierProduct,
	"SetProductPricing":           setProductPricing,
	"ClearNewFlags":               clearNewFlags,
	"DeactivateUnseen":            deactivateUnseen,
	"ListSupplierScopes":          listSupplierScopes,
}

type sourceQuery struct {
	file  string
	text  string
	named []string
}

// loadSourceQueries reads sql/queries and rewrites named arguments to $N in
// order of first use, the way sqlc emits them.
func loadSourceQueries(t *testing.T) map[string]sourceQuery {
	t.Helper()

	files, err := filepath.Glob(filepath.Join("..", "..", "sql", "queries", "*.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	out := map[string]sourceQuery{}
	for _, file := range files {
		raw, err := os.ReadFile(file)
		require.NoError(t, err)

		src := string(raw)
		starts := queryHeader.FindAllStringSubmatchIndex(src, -1)
		for i, loc := range starts {
			end := len(src)
			if i+1 < len(starts) {
				end = starts[i+1][0]
			}
			block := strings.TrimSpace(src[loc[0]:end])
			name := src[loc[2]:loc[3]]

			var order []string
			text := namedArg.ReplaceAllStringFunc(block, func(m string) string {
				sub := namedArg.FindStringSubmatch(m)
				arg := sub[1] + sub[2]
				idx := indexOf(order, arg)
				if idx < 0 {
					order = append(order, arg)
					idx = len(order) - 1
				}
				return "$" + strconv.Itoa(idx+1)
			})
			if len(order) > 0 {
				assert.False(t, positional.MatchString(block), "%s mixes $N with named arguments", name)
			}
			out[name] = sourceQuery{
				file:  filepath.Base(file),
				text:  strings.TrimSuffix(strings.TrimRight(text, " \n"), ";") + "\n",
				named: order,
			}
		}
	}
	return out
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

func TestGeneratedQueriesMatchSource(t *testing.T) {
	source := loadSourceQueries(t)
	require.Len(t, source, len(generatedQueries))

	for name, q := range source {
		gen, ok := generatedQueries[name]
		if assert.True(t, ok, "%s (%s) has no generated code", name, q.file) {
			assert.Equal(t, gen, q.text, "%s (%s)", name, q.file)
		}
	}
}

func TestNamedArgumentsMatchParamFields(t *testing.T) {
	source := loadSourceQueries(t)

	params := map[string]any{
		"GetPriceAt":       GetPriceAtParams{},
		"ClearNewFlags":    ClearNewFlagsParams{},
		"DeactivateUnseen": DeactivateUnseenParams{},
	}
	for name, p := range params {
		typ := reflect.TypeOf(p)
		var tags []string
		for i := 0; i < typ.NumField(); i++ {
			tags = append(tags, typ.Field(i).Tag.Get("json"))
		}
		assert.Equal(t, tags, source[name].named, name)
	}

	assert.Equal(t, []string{"key"}, source["TryAdvisoryLock"].named)
	assert.Equal(t, []string{"key"}, source["AdvisoryUnlock"].named)
}
