package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"sort"

	"github.com/xaitan80/rawhttpd/internal/request"
)

// dump prints the parsed request line, headers and body of r.
func dump(w io.Writer, r *request.Request) {
	fmt.Fprintln(w, "Parsed Request Line:")
	fmt.Fprintf(w, "  Method: %s\n", r.RequestLine.Method)
	fmt.Fprintf(w, "  Path: %s\n", r.RequestLine.RequestTarget)
	fmt.Fprintf(w, "  Version: %s\n", r.RequestLine.HttpVersion)

	keys := make([]string, 0, len(r.Headers))
	for k := range r.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintln(w, "Parsed Headers:")
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %s\n", k, r.Headers[k])
	}
	if len(r.Body) > 0 {
		fmt.Fprintf(w, "Body (%d bytes):\n%s\n", len(r.Body), r.Body)
	}
}

func main() {
	addr := flag.String("addr", ":42069", "address to listen on")
	flag.Parse()

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		fmt.Println("listen error:", err)
		os.Exit(1)
	}
	defer ln.Close()

	for {
		conn, err := ln.Accept()
		if err != nil {
			fmt.Println("accept error:", err)
			continue
		}
		fmt.Println("accepted connection from", conn.RemoteAddr())

		// Handle each connection concurrently so we keep accepting others.
		go func(c net.Conn) {
			defer func() {
				c.Close()
				fmt.Println("closed connection")
			}()
			r, err := request.ReadFrom(c, request.DefaultBufferSize)
			if err != nil {
				if !errors.Is(err, request.ErrConnectionEmpty) {
					fmt.Println("parse error:", err)
				}
				return
			}
			dump(os.Stdout, r)
		}(conn)
	}
}
