package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/shpitdev/prospect-pipeline/internal/lead"
	"github.com/shpitdev/prospect-pipeline/internal/mockgemini"
)

const sampleLeads = `{"leads":[
{"id":"mock-1","businessName":"Northwind Marketing","legalName":"Northwind Marketing Ltd","email":"hello@northwind.example","phone":"+44 20 7946 0001","hasWhatsApp":true,"website":"https://northwind.example","address":"1 Example Street, London","niche":"Marketing agency","relevanceScore":0.92,"confidence":"High"},
{"id":"mock-2","businessName":"Contoso Creative","email":"studio@contoso.example","phone":"+44 20 7946 0002","hasWhatsApp":false,"website":"https://contoso.example","address":"2 Example Road, London","niche":"Creative agency","relevanceScore":0.71,"confidence":"Medium"}
]}`

func main() {
	addr := defaultString("MOCK_GEMINI_ADDR", ":8090")
	apiKey := defaultString("MOCK_GEMINI_API_KEY", "")
	replyFile := defaultString("MOCK_GEMINI_REPLY_FILE", "")
	delay := defaultString("MOCK_GEMINI_DELAY", "0s")

	fs := flag.NewFlagSet("mock-gemini", flag.ExitOnError)
	fs.StringVar(&addr, "addr", addr, "Listen address")
	fs.StringVar(&apiKey, "api-key", apiKey, "Reject requests whose API key differs (empty accepts any)")
	fs.StringVar(&replyFile, "reply-file", replyFile, "File whose contents are returned as the model text (default: built-in sample leads)")
	fs.StringVar(&delay, "delay", delay, "Delay before each response, e.g. 4s")
	_ = fs.Parse(os.Args[1:])

	d, err := time.ParseDuration(delay)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid --delay: %v\n", err)
		os.Exit(2)
	}

	reply := mockgemini.Reply{
		Text: sampleLeads,
		Sources: []lead.Source{
			{Kind: lead.SourceWeb, Title: "northwind.example", URI: "https://northwind.example"},
			{Kind: lead.SourceWeb, Title: "contoso.example", URI: "https://contoso.example"},
		},
		Delay: d,
	}
	if replyFile != "" {
		b, err := os.ReadFile(replyFile)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "read reply file: %v\n", err)
			os.Exit(2)
		}
		reply.Text = string(b)
		reply.Sources = nil
	}

	srv := mockgemini.New()
	srv.SetDefault(reply)
	srv.RequireAPIKey(apiKey)

	_, _ = fmt.Fprintf(os.Stdout, "mock-gemini listening on %s (set PROSPECTOR_GEMINI_BASE_URL=http://localhost%s)\n", addr, addr)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func defaultString(envVar string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(envVar))
	if v == "" {
		return fallback
	}
	return v
}
