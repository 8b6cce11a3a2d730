package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/haukened/tubeguard/internal/guard/domain"
)

// decider is the part of the blocklist repository check needs.
type decider interface {
	Decide(url string) domain.Decision
}

// checkURLs prints one verdict per URL and returns errBlocked when any of
// them is blocked.
func checkURLs(w io.Writer, d decider, urls []string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	blocked := false
	for _, u := range urls {
		dec := d.Decide(u)
		if dec.Blocked {
			blocked = true
			fmt.Fprintf(tw, "BLOCK\t%s\t%s\n", u, dec.Reason)
			continue
		}
		fmt.Fprintf(tw, "ALLOW\t%s\t\n", u)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if blocked {
		return errBlocked
	}
	return nil
}
