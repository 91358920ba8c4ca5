// Package arvos renders the HTML templates of the arvos directory service.
//
// Templates are plain text files with a handful of markers embedded in them.
// They're read one line at a time and never parsed into a tree, so a template
// is processed in a single pass, top to bottom:
//
//	<?KEY?>                                 the value of KEY
//	<!--?KEY?-->                            the same, safe inside HTML comments
//	<!--#IFDEF KEY--> ... <!--#ENDIF KEY-->  output only if KEY has a value
//	<!--#IFNDEF KEY--> ... <!--#ENDIF KEY--> output only if KEY has no value
//	<!--#FOR KEY--> ... <!--#ENDFOR KEY-->   repeat while KEY_0, KEY_1, ... have values
//	<!--#INCLUDE name-->                    render another template in place
//
// Values come from a Values store, filled in by the request handler before
// rendering. Inside a FOR block, KEY is looked up as KEY_i for the current
// iteration i before falling back to KEY, and IDX_i holds i. Substituted values
// have "<" escaped as "&lt;", so data can't open new markers or tags.
//
// Templates come from a Site, which exposes them as an fs.FS. To render a
// complete CGI response, with its Content-Type and Set-Cookie headers, pass a
// Page to Render. Render either writes the whole page or, if anything goes
// wrong, a server error page, and returns the error so the caller can exit
// with a failing status. RenderError writes the same error page for failures
// that happen before rendering starts. Renderer.Execute renders just the body
// of a template for callers that handle headers themselves.
//
// Text after a FOR or ENDFOR marker on the same line is rendered as though it
// started a new line, so "[<!--#FOR K--><?K?>,<!--#ENDFOR K-->] done" keeps
// its " done". Older arvos builds dropped everything after an ENDFOR; a
// remainder that is only whitespace, usually the newline, is still dropped.
//
// Blocks must nest properly. An ENDIF has to close the innermost open
// IFDEF or IFNDEF, and every block must close in the file or loop body it was
// opened in; anything else is an error rather than silently wrong output.
package arvos
