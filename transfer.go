package ftp

import (
	"fmt"
	"io"
	"os"
)

// Store uploads data from an io.Reader to the remote path.
// The transfer is performed in binary mode (TYPE I).
//
// Example:
//
//	file, err := os.Open("local.txt")
//	if err != nil {
//	    return err
//	}
//	defer file.Close()
//
//	err = client.Store("remote.txt", file)
func (c *Client) Store(remotePath string, r io.Reader) error {
	if err := c.Type("I"); err != nil {
		return fmt.Errorf("failed to set binary mode: %w", err)
	}

	dataConn, err := c.cmdDataConnFrom("STOR", remotePath)
	if err != nil {
		return err
	}

	_, copyErr := io.Copy(dataConn, r)

	// Always finish the data connection (close and read response)
	finishErr := c.finishDataConn("STOR", dataConn)

	if copyErr != nil {
		return fmt.Errorf("upload failed: %w", copyErr)
	}
	return finishErr
}

// StoreFrom uploads a local file to the remote path.
// This is a convenience wrapper around Store.
func (c *Client) StoreFrom(remotePath, localPath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open local file: %w", err)
	}
	defer file.Close()

	return c.Store(remotePath, file)
}

// Retrieve downloads data from the remote path to an io.Writer.
// The transfer is performed in binary mode (TYPE I).
//
// Example:
//
//	var buf bytes.Buffer
//	err := client.Retrieve("remote.txt", &buf)
func (c *Client) Retrieve(remotePath string, w io.Writer) error {
	if err := c.Type("I"); err != nil {
		return fmt.Errorf("failed to set binary mode: %w", err)
	}

	dataConn, err := c.cmdDataConnFrom("RETR", remotePath)
	if err != nil {
		return err
	}

	_, copyErr := io.Copy(w, dataConn)

	finishErr := c.finishDataConn("RETR", dataConn)

	if copyErr != nil {
		return fmt.Errorf("download failed: %w", copyErr)
	}
	return finishErr
}

// RetrieveTo downloads a remote file to a local path.
// The local file is removed if the download fails.
func (c *Client) RetrieveTo(remotePath, localPath string) error {
	file, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create local file: %w", err)
	}

	if err := c.Retrieve(remotePath, file); err != nil {
		file.Close()
		_ = os.Remove(localPath)
		return err
	}

	return file.Close()
}
