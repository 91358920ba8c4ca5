// Command avrender is the CGI program of the arvos directory service. It
// decodes the request, loads the caller's session, and renders one template
// with the request parameters and session data as values.
//
// Under a web server the request comes from the CGI environment. From a
// shell, pass the template and a query string to try a template out:
//
//	avrender --template-dir ./templates list.html 'NAME_0=Alice&NAME_1=Bob'
package main

import (
	"context"
	"os"
)

func main() {
	err := run(context.Background(), environment{
		args:   os.Args[1:],
		getenv: os.Getenv,
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		exit:   os.Exit,
	})
	if err != nil {
		os.Exit(1)
	}
}
