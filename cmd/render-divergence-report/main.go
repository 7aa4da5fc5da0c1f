package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

func main() {
	inputPath := flag.String("input", "", "path to divergence report markdown (produced by the backfill tool)")
	outputPath := flag.String("output", "", "path to write the rendered HTML (defaults to stdout)")
	flag.Parse()

	if *inputPath == "" {
		log.Fatal("missing required -input")
	}

	in, err := os.ReadFile(*inputPath)
	if err != nil {
		log.Fatalf("read input: %v", err)
	}

	var content strings.Builder
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert(in, &content); err != nil {
		log.Fatalf("markdown convert: %v", err)
	}

	page := buildHTML(content.String())
	if err := writeOutput(*outputPath, page); err != nil {
		log.Fatalf("write output: %v", err)
	}
}

func buildHTML(contentHTML string) string {
	return "<!doctype html><html><head><meta charset='utf-8'><title>Recompute Divergence Report</title>" +
		"<style>" +
		"body{font-family:ui-sans-serif,system-ui,sans-serif;max-width:900px;margin:2rem auto;padding:0 1rem;color:#1c1917;} " +
		"code,pre{font-family:ui-monospace,monospace;background:#f5f5f4;border-radius:4px;} " +
		"pre{padding:0.75rem;overflow-x:auto;font-size:0.85rem;} " +
		"table{width:100%;border-collapse:collapse;font-size:0.85rem;} " +
		"th,td{border:1px solid #a8a29e;padding:0.35rem 0.45rem;text-align:left;vertical-align:top;} " +
		"thead th{background:#f1f5f9;font-weight:700;}" +
		"</style></head><body>" +
		"<div class='report-html'>" + contentHTML + "</div>" +
		"</body></html>"
}

func writeOutput(path, page string) error {
	if path == "" {
		_, err := fmt.Print(page)
		return err
	}
	return os.WriteFile(path, []byte(page), 0o644)
}
