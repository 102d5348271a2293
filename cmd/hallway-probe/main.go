// hallway-probe is a standalone liveness endpoint. It deliberately shares no
// code with the chat service so it can be deployed and rebuilt independently.
package main

import (
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
)

func main() {
	address := os.Getenv("PROBE_ADDRESS")
	if address == "" {
		address = "0.0.0.0:8081"
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	log.Printf("probe listening on %s", address)
	if err := http.ListenAndServe(address, router); err != nil {
		log.Fatal(err)
	}
}
