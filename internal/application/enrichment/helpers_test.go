package enrichment

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/erp/labeldesk/internal/infrastructure/erp"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// MockGateway is a mock implementation of Gateway. Return values may be given
// as functions of the call arguments.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Get(ctx context.Context, path string) (erp.Document, error) {
	args := m.Called(ctx, path)
	if fn, ok := args.Get(0).(func(string) (erp.Document, error)); ok {
		return fn(path)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(erp.Document), args.Error(1)
}

func (m *MockGateway) Batch(ctx context.Context, servicePath string, paths []string) ([]erp.Document, error) {
	args := m.Called(ctx, servicePath, paths)
	if fn, ok := args.Get(0).(func(string, []string) ([]erp.Document, error)); ok {
		return fn(servicePath, paths)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]erp.Document), args.Error(1)
}

func fastRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

// fakeERP serves the OData entities and $batch endpoints the pipeline uses.
type fakeERP struct {
	mu sync.Mutex

	items         []map[string]any
	headers       []map[string]any
	entities      map[string]map[string]any // absolute entity path -> JSON body
	users         map[string]map[string]any // document -> business user row
	manufacturers []map[string]any

	failBatch   bool
	failItems   bool
	failFilters map[string]bool

	batchCalls  int
	entityCalls map[string]int
	paths       []string
}

func newFakeERP() *fakeERP {
	return &fakeERP{
		entities:    map[string]map[string]any{},
		users:       map[string]map[string]any{},
		failFilters: map[string]bool{},
		entityCalls: map[string]int{},
	}
}

func (f *fakeERP) entityHits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.entityCalls {
		n += c
	}
	return n
}

func (f *fakeERP) calls(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entityCalls[path]
}

func (f *fakeERP) batches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batchCalls
}

func (f *fakeERP) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/$batch") {
		f.serveBatch(w, r, strings.TrimSuffix(r.URL.Path, "/$batch"))
		return
	}
	status, body := f.answer(r.URL.Path, r.URL.Query())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (f *fakeERP) serveBatch(w http.ResponseWriter, r *http.Request, service string) {
	f.mu.Lock()
	f.batchCalls++
	fail := f.failBatch
	f.mu.Unlock()
	if fail {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	reader := multipart.NewReader(r.Body, params["boundary"])

	const boundary = "batchresponse_1"
	var out strings.Builder
	for {
		part, err := reader.NextPart()
		if err != nil {
			break
		}
		line := requestLine(part)
		rel, rawQuery, _ := strings.Cut(line, "?")
		rel, _ = url.PathUnescape(rel)
		query, _ := url.ParseQuery(rawQuery)
		status, body := f.answer(service+"/"+rel, query)
		payload, _ := json.Marshal(body)

		fmt.Fprintf(&out, "--%s\r\nContent-Type: application/http\r\nContent-Transfer-Encoding: binary\r\n\r\n", boundary)
		fmt.Fprintf(&out, "HTTP/1.1 %d %s\r\nContent-Type: application/json\r\n\r\n%s\r\n", status, http.StatusText(status), payload)
	}
	fmt.Fprintf(&out, "--%s--\r\n", boundary)

	w.Header().Set("Content-Type", "multipart/mixed; boundary="+boundary)
	w.WriteHeader(http.StatusAccepted)
	_, _ = io.WriteString(w, out.String())
}

// requestLine returns the target of the embedded "GET <target> HTTP/1.1" line.
func requestLine(part io.Reader) string {
	sc := bufio.NewScanner(part)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 3 && fields[0] == http.MethodGet {
			return fields[1]
		}
	}
	return ""
}

func (f *fakeERP) answer(path string, query url.Values) (int, any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, path)

	filter := query.Get("$filter")
	switch {
	case strings.HasSuffix(path, "/A_MaterialDocumentItem"):
		if f.failItems || f.failFilters[filter] {
			return http.StatusServiceUnavailable, map[string]any{"error": "down"}
		}
		var rows []map[string]any
		for _, it := range f.items {
			if filter == "" || matchesFilter(it, filter) {
				rows = append(rows, it)
			}
		}
		return http.StatusOK, v2Results(rows)
	case strings.HasSuffix(path, "/A_MaterialDocumentHeader"):
		return http.StatusOK, v2Results(f.headers)
	case strings.HasSuffix(path, "/ManfoDtls"):
		f.entityCalls[path]++
		return http.StatusOK, v2Results(f.manufacturers)
	case strings.HasSuffix(path, "/zi_bussinessuer"):
		f.entityCalls[path+"?"+filter]++
		doc := between(filter, "'", "'")
		values := []any{}
		if u, ok := f.users[doc]; ok {
			values = append(values, u)
		}
		return http.StatusOK, map[string]any{"value": values}
	}

	f.entityCalls[path]++
	if body, ok := f.entities[path]; ok {
		return http.StatusOK, body
	}
	return http.StatusNotFound, map[string]any{"error": map[string]any{"code": "404"}}
}

func v2Results(rows []map[string]any) map[string]any {
	if rows == nil {
		rows = []map[string]any{}
	}
	return map[string]any{"d": map[string]any{"results": rows}}
}

// matchesFilter understands the three clause forms the item query emits.
func matchesFilter(row map[string]any, filter string) bool {
	doc, _ := row["MaterialDocument"].(string)
	year, _ := row["MaterialDocumentYear"].(string)
	item, _ := row["MaterialDocumentItem"].(string)

	byItem := "(MaterialDocument eq '" + doc + "' and MaterialDocumentItem eq '" + item + "')"
	byYear := "(MaterialDocument eq '" + doc + "' and MaterialDocumentYear eq '" + year + "')"
	if strings.Contains(filter, byItem) || strings.Contains(filter, byYear) {
		return true
	}
	bare := "MaterialDocument eq '" + doc + "'"
	for rest := filter; ; {
		i := strings.Index(rest, bare)
		if i < 0 {
			return false
		}
		rest = rest[i+len(bare):]
		if !strings.HasPrefix(rest, " and") {
			return true
		}
	}
}

func between(s, open, close string) string {
	_, after, ok := strings.Cut(s, open)
	if !ok {
		return ""
	}
	inner, _, _ := strings.Cut(after, close)
	return inner
}

func newERPClient(t *testing.T, srv *httptest.Server) *erp.Client {
	t.Helper()
	c, err := erp.NewClient(erp.Config{
		BaseURL:           srv.URL,
		Username:          "svc-user",
		Password:          "svc-pass",
		Client:            "100",
		Timeout:           2 * time.Second,
		MaxResponseBytes:  4 << 20,
		RequestsPerSecond: 10000,
		Burst:             1000,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return c
}

// grnFixture is one GRN with two lines, both master sources and a manufacturer.
func grnFixture() *fakeERP {
	f := newFakeERP()
	f.items = []map[string]any{
		{
			"MaterialDocument": "5000000001", "MaterialDocumentYear": "2025", "MaterialDocumentItem": "2",
			"Material": "RM-200", "Plant": "1100", "Supplier": "SUP1",
			"PurchaseOrder": "4500000010", "PurchaseOrderItem": "20",
			"QuantityInBaseUnit": "5", "MaterialBaseUnit": "KG", "Batch": "B-2",
		},
		{
			"MaterialDocument": "5000000001", "MaterialDocumentYear": "2025", "MaterialDocumentItem": "1",
			"Material": "RM-100", "Plant": "1100", "Supplier": "SUP1",
			"PurchaseOrder": "4500000010", "PurchaseOrderItem": "10",
			"QuantityInBaseUnit": "10.5", "MaterialBaseUnit": "KG", "Batch": "B-1",
		},
	}
	f.headers = []map[string]any{
		{"MaterialDocument": "5000000001", "MaterialDocumentYear": "2025"},
		{"MaterialDocument": "49000000002", "MaterialDocumentYear": "2025"},
	}
	f.entities[ProductService+"/ProductDescription(Product='000000000000RM-100',Language='EN')"] = map[string]any{
		"@odata.context": "$metadata#ProductDescription/$entity", "Product": "000000000000RM-100", "ProductDescription": "Citric Acid",
	}
	f.entities[ProductService+"/ProductDescription(Product='000000000000RM-200',Language='EN')"] = map[string]any{
		"Product": "000000000000RM-200", "ProductDescription": "Sodium Benzoate",
	}
	f.entities[BusinessPartnerService+"/A_Supplier('SUP1')"] = map[string]any{
		"d": map[string]any{"SupplierName": "Acme Chemicals"},
	}
	f.entities[MaterialDocumentService+"/A_MaterialDocumentHeader(MaterialDocument='5000000001',MaterialDocumentYear='2025')"] = map[string]any{
		"d": map[string]any{"MaterialDocument": "5000000001", "MaterialDocumentYear": "2025", "PostingDate": "/Date(1735689600000)/"},
	}
	f.entities[PurchaseOrderService+"/A_PurchaseOrderItem(PurchaseOrder='4500000010',PurchaseOrderItem='10')"] = map[string]any{
		"d": map[string]any{"PurchaseOrder": "4500000010", "YY1_ManufacturerNO1_PDI": " M01 "},
	}
	f.entities[PurchaseOrderService+"/A_PurchaseOrderItem(PurchaseOrder='4500000010',PurchaseOrderItem='20')"] = map[string]any{
		"d": map[string]any{"PurchaseOrder": "4500000010"},
	}
	f.users["5000000001"] = map[string]any{"MaterialDocument": "5000000001", "PersonFullName": "Asha Rao"}
	f.manufacturers = []map[string]any{
		{"ManfNo": "M01", "ManfNm": "Shree Labs", "ManfAddr": "Plot 4, Vapi", "ManfStat": "Gujarat"},
		{"ManfNo": "M02", "ManfNm": "Other Co", "ManfAddr": "", "ManfStat": ""},
	}
	return f
}
