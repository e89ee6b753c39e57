// This is a http type of reporter.
// It fetches batch progress from the batch store
// and publishes on the http routes.

package reporter

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eil-protocol/eil-go/eiltypes"
	"github.com/eil-protocol/eil-go/opstore"
)

const (
	ROUTE_HELLO     = "/hello"
	ROUTE_OPERATION = "/operation"
	ROUTE_BATCHES   = "/batches"
)

type HttpReporter struct {
	serverIP   string // listen ip
	serverPort string // listen port

	// upstream data source
	batchdb opstore.BatchStore // this is an interface
}

func NewHttpReporter(serverIP string, serverPort string, batchdb opstore.BatchStore) *HttpReporter {
	return &HttpReporter{
		serverIP:   serverIP,
		serverPort: serverPort,
		batchdb:    batchdb,
	}
}

// Hook up routes & handlers
func (h *HttpReporter) SetupRouter() *gin.Engine {
	router := gin.Default()

	// Define routes & handlers
	router.GET(ROUTE_HELLO, Hello)
	router.GET(ROUTE_OPERATION, h.Operation)
	router.GET(ROUTE_BATCHES, h.Batches)

	return router
}

// Hook up router & ip:port
func (h *HttpReporter) Run() {
	router := h.SetupRouter()
	address := h.serverIP + ":" + h.serverPort
	if err := router.Run(address); err != nil {
		panic(err)
	}
}

// Example route.
func Hello(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "world",
	})
}

// Fetch all batches of one operation from the batch store
// Publish on the route
func (h *HttpReporter) Operation(c *gin.Context) {
	opID := c.Query("op_id")

	if opID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "op_id must be provided"})
		return
	}

	batches, err := h.batchdb.GetByOp(opID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if len(batches) > 0 {
		c.JSON(http.StatusOK, gin.H{"data": batches})
	} else {
		c.JSON(http.StatusNotFound, gin.H{"error": "No operation found"})
	}
}

// Fetch batches in a given status
func (h *HttpReporter) Batches(c *gin.Context) {
	status := c.Query("status")

	if status == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be provided"})
		return
	}

	batches, err := h.batchdb.GetByStatus(eiltypes.BatchStatus(status))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": batches})
}
