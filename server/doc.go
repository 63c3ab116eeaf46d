// Package server implements a minimal active-mode FTP server.
//
// # Overview
//
// The server understands exactly six commands:
//
//	USER <name>              331, or 500 once logged in
//	PASS <password>          230, or 500 (no user, bad password, already logged in)
//	TYPE I | TYPE A          200 for binary, 500 for ASCII
//	PORT h1,h2,h3,h4,p1,p2   200, 501 if malformed, 530 before login
//	STOR <path>              150 then 226, 530 before login
//	RETR <path>              150 then 226, 550 if the file does not exist
//
// Every request is a single "COMMAND argument" line terminated by CRLF.
// Anything else is answered with 500.
//
// Data always flows in active mode: after PORT, each STOR or RETR makes the
// server dial the advertised address from its data port (20 by default),
// move one file, and close the connection. The server never listens for
// data connections.
//
// # Getting Started
//
//	package main
//
//	import (
//	    "log"
//	    "github.com/gonzalop/miniftp/server"
//	)
//
//	func main() {
//	    driver, err := server.NewOSDriver("/srv/ftp")
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    s, err := server.NewServer(":21",
//	        server.WithDriver(driver),
//	        server.WithCredentials(server.StaticCredentials{"root": "root"}),
//	    )
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    log.Fatal(s.ListenAndServe())
//	}
//
// # Paths
//
// Without a root directory, STOR and RETR arguments are used as local paths
// exactly as received, relative to the working directory of the process.
// NewOSDriver with a non-empty root resolves every path inside that
// directory instead.
//
// # Data Port
//
// Binding port 20 usually requires elevated privileges. WithDataPort(0)
// lets the kernel pick the source port, which is what the tests do.
//
// # Errors
//
// Failures that happen before the 150 reply (unknown file, unwritable path,
// data address unreachable) are answered with 550 or 425 and the session
// continues. Failures after it are answered with 426 or 451 and a partially
// received upload is removed. Only a broken command connection ends the
// session.
package server
