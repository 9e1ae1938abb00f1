// Package platformtest provides an in-process fake of the commerce platform
// admin API for tests.
package platformtest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agentstation/stocksync/internal/platform"
	"github.com/agentstation/stocksync/internal/transport"
)

// Token is the access token the fake accepts.
const Token = "shpat_test"

// Server is a fake admin API. All fields are guarded by the server's mutex;
// use the accessor methods from tests.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	shop      platform.Shop
	products  []platform.Product
	locations []platform.Location
	writes    []platform.InventoryLevel
	requests  map[string]int

	failItems   map[int64]int
	rateLimited int
	pageSize    int
	brokenPage  int
}

// New starts a fake server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{
		shop:      platform.Shop{ID: 1, Name: "Test Shop", Domain: "test.example.com"},
		locations: []platform.Location{{ID: 1, Name: "Warehouse", Active: true, Legacy: true}},
		requests:  map[string]int{},
		failItems: map[int64]int{},
		pageSize:  250,
	}
	s.Server = httptest.NewServer(s.router())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) router() *gin.Engine {
	r := gin.New()
	api := r.Group("/admin/api/:version", s.authorize, s.throttle)
	api.GET("/shop.json", s.getShop)
	api.GET("/products.json", s.listProducts)
	api.GET("/locations.json", s.listLocations)
	api.POST("/inventory_levels/set.json", s.setInventory)
	return r
}

// Config returns platform settings pointing at the fake.
func (s *Server) Config() platform.Config {
	return platform.Config{ShopURL: s.URL, AccessToken: Token, APIVersion: "2024-10"}
}

// Client returns a platform client for the fake with pacing and backoff
// waits disabled.
func (s *Server) Client(t testing.TB, opts ...transport.Option) *platform.Client {
	t.Helper()
	base := []transport.Option{
		transport.WithRequestsPerSecond(-1),
		transport.WithSleep(func(context.Context, time.Duration) error { return nil }),
	}
	c, err := platform.New(s.Config(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("platformtest: new client: %v", err)
	}
	return c
}

// SetProducts replaces the catalog.
func (s *Server) SetProducts(products ...platform.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = products
}

// SetLocations replaces the location list.
func (s *Server) SetLocations(locations ...platform.Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locations = locations
}

// SetPageSize caps the page size regardless of the requested limit.
func (s *Server) SetPageSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageSize = n
}

// FailPage makes the given 1-based product page answer 500.
func (s *Server) FailPage(page int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.brokenPage = page
}

// FailItem makes writes for an inventory item answer status.
func (s *Server) FailItem(inventoryItemID int64, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failItems[inventoryItemID] = status
}

// RateLimit makes the next n requests answer 429.
func (s *Server) RateLimit(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateLimited = n
}

// Writes returns the successful inventory writes in order.
func (s *Server) Writes() []platform.InventoryLevel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]platform.InventoryLevel(nil), s.writes...)
}

// Requests returns how many requests hit a route, e.g. "GET /products.json".
func (s *Server) Requests(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[route]
}

// Quantity returns the current inventory quantity of a variant's item.
func (s *Server) Quantity(inventoryItemID int64) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		for _, v := range p.Variants {
			if v.InventoryItemID == inventoryItemID {
				return v.InventoryQuantity, true
			}
		}
	}
	return 0, false
}

func (s *Server) authorize(c *gin.Context) {
	if c.GetHeader("X-Shopify-Access-Token") != Token {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"errors": "[API] Invalid API key or access token"})
		return
	}
	c.Next()
}

func (s *Server) throttle(c *gin.Context) {
	s.mu.Lock()
	route := c.Request.Method + " " + c.FullPath()[len("/admin/api/:version"):]
	s.requests[route]++
	limited := s.rateLimited > 0
	if limited {
		s.rateLimited--
	}
	s.mu.Unlock()

	if limited {
		c.Header("Retry-After", "0")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"errors": "Exceeded 2 calls per second for api client."})
		return
	}
	c.Next()
}

func (s *Server) getShop(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"shop": s.shop})
}

func (s *Server) listLocations(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"locations": s.locations})
}

func (s *Server) listProducts(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"errors": "invalid limit"})
		return
	}
	if limit > s.pageSize {
		limit = s.pageSize
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("page_info", "0"))

	if s.brokenPage > 0 && offset/limit+1 == s.brokenPage {
		c.JSON(http.StatusInternalServerError, gin.H{"errors": "internal error"})
		return
	}

	end := offset + limit
	if end > len(s.products) {
		end = len(s.products)
	}
	var page []platform.Product
	if offset < len(s.products) {
		page = s.products[offset:end]
	}

	if end < len(s.products) {
		next := fmt.Sprintf("http://%s%s?limit=%d&page_info=%d", c.Request.Host, c.Request.URL.Path, limit, end)
		c.Header("Link", fmt.Sprintf(`<%s>; rel="next"`, next))
	}
	c.JSON(http.StatusOK, gin.H{"products": page})
}

func (s *Server) setInventory(c *gin.Context) {
	var level platform.InventoryLevel
	if err := c.ShouldBindJSON(&level); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": "invalid request"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if status, ok := s.failItems[level.InventoryItemID]; ok {
		c.JSON(status, gin.H{"errors": fmt.Sprintf("cannot set item %d", level.InventoryItemID)})
		return
	}

	found := false
	for pi := range s.products {
		for vi := range s.products[pi].Variants {
			if s.products[pi].Variants[vi].InventoryItemID == level.InventoryItemID {
				s.products[pi].Variants[vi].InventoryQuantity = level.Available
				found = true
			}
		}
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"errors": "Not Found"})
		return
	}

	s.writes = append(s.writes, level)
	c.JSON(http.StatusOK, gin.H{"inventory_level": gin.H{
		"inventory_item_id": level.InventoryItemID,
		"location_id":       level.LocationID,
		"available":         level.Available,
	}})
}
