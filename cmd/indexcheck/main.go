// Command indexcheck loads the similarity index and reports what it
// found; run it after rebuilding the index to confirm the backend will
// pick it up.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Devcavi19/adal-ui/pkg/config"
	svc "github.com/Devcavi19/adal-ui/pkg/services"
)

func main() {
	dir := flag.String("index", config.IndexPath, "index directory")
	flag.Parse()

	rag, err := svc.LoadRetriever(*dir, nil, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "index check failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("index directory:  %s\n", *dir)
	fmt.Printf("documents:        %d\n", rag.Len())
	fmt.Printf("dimension:        %d\n", rag.Dimension())
	fmt.Printf("embedding model:  %s\n", rag.Model)
}
