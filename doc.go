// Package ftp implements a small active-mode FTP client.
//
// It speaks the same six commands as the server in the server package:
// USER, PASS, TYPE, PORT, STOR and RETR. Every transfer uses active mode:
// the client listens on an ephemeral port, advertises it with PORT, and the
// server connects to it.
//
// Example:
//
//	c, err := ftp.Dial("127.0.0.1:21", ftp.WithTimeout(10*time.Second))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	if err := c.Login("root", "root"); err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := c.StoreFrom("remote.bin", "local.bin"); err != nil {
//	    log.Fatal(err)
//	}
//
// Server rejections are returned as *ProtocolError carrying the reply code.
package ftp
