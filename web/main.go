package main

import (
	"flag"
	"log"
	"os"

	"github.com/df07/go-stochastic-viz/web/server"
)

func main() {
	// Parse command line flags
	port := flag.Int("port", 8080, "Port to serve on")
	dataDir := flag.String("data", "data", "Directory of importable datasets")
	flag.Parse()

	// Create and start web server
	webServer := server.NewServer(*port, *dataDir)

	log.Printf("Stochastic Visualization Web Server")
	log.Printf("Visit http://localhost:%d to start rendering", *port)

	if err := webServer.Start(); err != nil {
		log.Printf("Error starting server: %v", err)
		os.Exit(1)
	}
}
