package arvos_test

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"impractical.co/arvos"
)

type renderTest struct {
	files  map[string]string
	values map[string]string
	rows   []map[string]string
	opts   []arvos.RendererOption
	want   string
}

func (test renderTest) store() *arvos.Values {
	values := valuesFrom(test.values)
	for i, row := range test.rows {
		values.SetRow(row, i)
	}
	return values
}

func TestRendererExecute(t *testing.T) {
	t.Parallel()

	tests := map[string]renderTest{
		"plain": {
			files: map[string]string{"page": "<html>\n<p>hi</p>\n</html>\n"},
			want:  "<html>\n<p>hi</p>\n</html>\n",
		},
		"no-trailing-newline": {
			files: map[string]string{"page": "one\ntwo"},
			want:  "one\ntwo",
		},
		"empty-template": {
			files: map[string]string{"page": ""},
			want:  "",
		},
		"substitution": {
			files:  map[string]string{"page": "Hello <?NAME?>, <!--?GREETING?-->\n"},
			values: map[string]string{"NAME": "Alice", "GREETING": "welcome"},
			want:   "Hello Alice, welcome\n",
		},
		"escapes-values": {
			files:  map[string]string{"page": "<p><?COMMENT?></p>\n"},
			values: map[string]string{"COMMENT": "<script>alert(1)</script>"},
			want:   "<p>&lt;script>alert(1)&lt;/script></p>\n",
		},
		"for-loop": {
			files:  map[string]string{"page": "<!--#FOR NAME-->Hello <?NAME?>!\n<!--#ENDFOR NAME-->"},
			values: map[string]string{"NAME_0": "Alice", "NAME_1": "Bob"},
			want:   "Hello Alice!\nHello Bob!\n",
		},
		"for-loop-three": {
			files:  map[string]string{"page": "<!--#FOR K-->\n<?K?>\n<!--#ENDFOR K-->\n"},
			values: map[string]string{"K_0": "a", "K_1": "b", "K_2": "c"},
			want:   "a\nb\nc\n",
		},
		"for-loop-zero": {
			files: map[string]string{"page": "before\n<!--#FOR K-->\n<?K?>\n<!--#ENDFOR K-->\nafter\n"},
			want:  "before\nafter\n",
		},
		"for-loop-ignores-bare-key": {
			files:  map[string]string{"page": "<!--#FOR K-->\n<?K?>\n<!--#ENDFOR K-->\n"},
			values: map[string]string{"K": "bare"},
			want:   "",
		},
		"for-loop-ends-at-empty": {
			files:  map[string]string{"page": "<!--#FOR K-->\n<?K?>\n<!--#ENDFOR K-->\n"},
			values: map[string]string{"K_0": "a", "K_1": "", "K_2": "c"},
			want:   "a\n",
		},
		"for-loop-rows": {
			files:  map[string]string{"page": "<!--#FOR N--><?IDX?>:<?N?> (<?ROLE?>)\n<!--#ENDFOR N-->"},
			values: map[string]string{"ROLE": "reader"},
			rows: []map[string]string{
				{"N": "x", "ROLE": "admin"},
				{"N": "y"},
			},
			want: "0:x (admin)\n1:y (reader)\n",
		},
		"for-loop-inline": {
			files:  map[string]string{"page": "[<!--#FOR K--><?K?>,<!--#ENDFOR K-->] done\n"},
			values: map[string]string{"K_0": "a", "K_1": "b"},
			want:   "[a,b,] done\n",
		},
		"for-loop-nested": {
			files:  map[string]string{"page": "<!--#FOR O-->\n<?O?>:\n<!--#FOR I-->\n-<?I?>\n<!--#ENDFOR I-->\n<!--#ENDFOR O-->\n"},
			values: map[string]string{
				"O_0": "a", "O_1": "b",
				"I_0": "1", "I_1": "2",
			},
			want: "a:\n-1\n-2\nb:\n-1\n-2\n",
		},
		"for-loop-nested-same-tag": {
			files:  map[string]string{"page": "<!--#FOR K-->\n<!--#FOR K-->\n<?K?>\n<!--#ENDFOR K-->\n<!--#ENDFOR K-->\n"},
			values: map[string]string{"K_0": "x"},
			want:   "x\n",
		},
		"for-loop-conditional-body": {
			files: map[string]string{"page": "<!--#FOR N-->\n<?N?><!--#IFDEF ADMIN--> *<!--#ENDIF ADMIN-->\n<!--#ENDFOR N-->\n"},
			rows: []map[string]string{
				{"N": "alice", "ADMIN": "1"},
				{"N": "bob"},
			},
			want: "alice *\nbob\n",
		},
		"for-loop-empty-variant-uses-bare-key": {
			files:  map[string]string{"page": "<!--#FOR L-->[<!--#IFDEF X-->def:<?X?><!--#ENDIF X-->]\n<!--#ENDFOR L-->"},
			values: map[string]string{"L_0": "1", "X": "bare", "X_0": ""},
			want:   "[def:bare]\n",
		},
		"for-loop-unset-variant-uses-bare-key": {
			files:  map[string]string{"page": "<!--#FOR L-->[<!--#IFDEF X-->def:<?X?><!--#ENDIF X-->]\n<!--#ENDFOR L-->"},
			values: map[string]string{"L_0": "1", "X": "bare"},
			want:   "[def:bare]\n",
		},
		"ifdef-defined": {
			files:  map[string]string{"page": "<!--#IFDEF A-->yes<!--#ENDIF A-->\n"},
			values: map[string]string{"A": "1"},
			want:   "yes\n",
		},
		"ifdef-undefined": {
			files: map[string]string{"page": "<!--#IFDEF A-->yes<!--#ENDIF A-->\n"},
			want:  "\n",
		},
		"ifdef-empty": {
			files:  map[string]string{"page": "<!--#IFDEF A-->yes<!--#ENDIF A-->\n"},
			values: map[string]string{"A": ""},
			want:   "\n",
		},
		"ifndef-defined": {
			files:  map[string]string{"page": "<!--#IFNDEF A-->yes<!--#ENDIF A-->\n"},
			values: map[string]string{"A": "1"},
			want:   "\n",
		},
		"ifndef-undefined": {
			files: map[string]string{"page": "<!--#IFNDEF A-->yes<!--#ENDIF A-->\n"},
			want:  "yes\n",
		},
		"ifdef-multiline": {
			files: map[string]string{"page": "top\n<!--#IFDEF A-->\nhidden\n<!--#ENDIF A-->\nbottom\n"},
			want:  "top\n\nbottom\n",
		},
		"ifdef-inline": {
			files: map[string]string{"page": "a<!--#IFDEF X-->b<!--#ENDIF X-->c\n"},
			want:  "ac\n",
		},
		"ifdef-nested-same-tag": {
			files:  map[string]string{"page": "<!--#IFDEF A--><!--#IFNDEF A-->no<!--#ENDIF A-->yes<!--#ENDIF A-->\n"},
			values: map[string]string{"A": "1"},
			want:   "yes\n",
		},
		"ifdef-nested-in-skipped": {
			files:  map[string]string{"page": "<!--#IFDEF A--><!--#IFDEF B-->x<!--#ENDIF B-->y<!--#ENDIF A-->z\n"},
			values: map[string]string{"B": "1"},
			want:   "z\n",
		},
		"ifdef-substituted-tag": {
			files:  map[string]string{"page": "<!--#IFDEF <?WHICH?>-->on<!--#ENDIF <?WHICH?>-->\n"},
			values: map[string]string{"WHICH": "FLAG", "FLAG": "1"},
			want:   "on\n",
		},
		"endif-without-block": {
			files: map[string]string{"page": "a<!--#ENDIF A-->b\n"},
			want:  "ab\n",
		},
		"include": {
			files: map[string]string{
				"page":   "a<!--#INCLUDE inc-->c\n",
				"inc":    "b",
				"unused": "never",
			},
			want: "abc\n",
		},
		"include-nested": {
			files: map[string]string{
				"page":        "<!--#INCLUDE layout/head-->body\n",
				"layout/head": "<title><?TITLE?></title>\n<!--#INCLUDE layout/css-->",
				"layout/css":  "<style></style>\n",
			},
			values: map[string]string{"TITLE": "Directory"},
			want:   "<title>Directory</title>\n<style></style>\nbody\n",
		},
		"include-in-loop": {
			files: map[string]string{
				"page": "<!--#FOR N--><!--#INCLUDE row-->\n<!--#ENDFOR N-->",
				"row":  "<?N?>;",
			},
			rows: []map[string]string{{"N": "x"}, {"N": "y"}},
			want: "x;\ny;\n",
		},
		"include-in-skipped": {
			files: map[string]string{"page": "<!--#IFDEF A--><!--#INCLUDE missing--><!--#ENDIF A-->ok\n"},
			want:  "ok\n",
		},
		"include-depth-limit": {
			files: map[string]string{
				"page": "1<!--#INCLUDE b-->",
				"b":    "2<!--#INCLUDE c-->",
				"c":    "3\n",
			},
			opts: []arvos.RendererOption{arvos.WithMaxIncludeDepth(2)},
			want: "123\n",
		},
		"unknown-directive": {
			files: map[string]string{"page": "x<!--#ECHO var-->y\n"},
			want:  "x<!--#ECHO var-->y\n",
		},
		"unterminated-directive": {
			files: map[string]string{"page": "x<!--#IFDEF A y\n"},
			want:  "x<!--#IFDEF A y\n",
		},
		"html-comments": {
			files: map[string]string{"page": "<!-- a comment -->\n"},
			want:  "<!-- a comment -->\n",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			site := arvos.FSSite{Templates: templates(test.files)}
			var out bytes.Buffer
			err := arvos.NewRenderer(site, test.store(), test.opts...).Execute(context.Background(), &out, "page")
			if err != nil {
				t.Fatalf("Unexpected error: %s", err)
			}
			if diff := cmp.Diff(test.want, out.String()); diff != "" {
				t.Errorf("Unexpected output (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRendererExecuteErrors(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		renderTest
		err      error
		contains string
	}{
		"unterminated-ifdef": {
			renderTest: renderTest{files: map[string]string{"page": "<!--#IFDEF A-->x\n"}},
			err:        arvos.ErrUnterminatedBlock,
			contains:   `IFDEF "A" has no ENDIF`,
		},
		"unterminated-skipped-ifndef": {
			renderTest: renderTest{
				files:  map[string]string{"page": "<!--#IFNDEF A-->x\n"},
				values: map[string]string{"A": "1"},
			},
			err: arvos.ErrUnterminatedBlock,
		},
		"unterminated-for": {
			renderTest: renderTest{files: map[string]string{"page": "<!--#FOR K-->\n<?K?>\n"}},
			err:        arvos.ErrUnterminatedBlock,
			contains:   `FOR "K" has no ENDFOR`,
		},
		"unterminated-ifdef-in-loop": {
			renderTest: renderTest{
				files:  map[string]string{"page": "<!--#FOR K--><!--#IFDEF X-->\n<!--#ENDFOR K-->\n<!--#ENDIF X-->\n"},
				values: map[string]string{"K_0": "1"},
			},
			err:      arvos.ErrUnterminatedBlock,
			contains: `error in FOR "K" iteration 0`,
		},
		"unterminated-ifdef-in-include": {
			renderTest: renderTest{files: map[string]string{
				"page": "<!--#INCLUDE inc--><!--#ENDIF A-->\n",
				"inc":  "<!--#IFDEF A-->\n",
			}},
			err:      arvos.ErrUnterminatedBlock,
			contains: `error rendering "inc"`,
		},
		"mismatched-endif": {
			renderTest: renderTest{
				files:  map[string]string{"page": "<!--#IFDEF A--><!--#IFDEF B--><!--#ENDIF A--><!--#ENDIF B-->\n"},
				values: map[string]string{"A": "1", "B": "1"},
			},
			err:      arvos.ErrMismatchedBlock,
			contains: `ENDIF "A" inside IFDEF "B"`,
		},
		"mismatched-endif-while-skipping": {
			renderTest: renderTest{files: map[string]string{"page": "<!--#IFDEF A--><!--#IFDEF B--><!--#ENDIF A-->\n"}},
			err:        arvos.ErrMismatchedBlock,
		},
		"endfor-without-for": {
			renderTest: renderTest{files: map[string]string{"page": "x<!--#ENDFOR K-->\n"}},
			err:        arvos.ErrUnexpectedDirective,
		},
		"missing-template": {
			renderTest: renderTest{files: map[string]string{}},
			err:        fs.ErrNotExist,
			contains:   `error opening template "page"`,
		},
		"missing-include": {
			renderTest: renderTest{files: map[string]string{"page": "<!--#INCLUDE nope-->\n"}},
			err:        fs.ErrNotExist,
			contains:   `error opening template "nope"`,
		},
		"include-self": {
			renderTest: renderTest{files: map[string]string{"page": "x<!--#INCLUDE page-->\n"}},
			err:        arvos.ErrIncludeDepth,
		},
		"include-too-deep": {
			renderTest: renderTest{
				files: map[string]string{
					"page": "<!--#INCLUDE b-->",
					"b":    "<!--#INCLUDE c-->",
					"c":    "<!--#INCLUDE d-->",
					"d":    "deep\n",
				},
				opts: []arvos.RendererOption{arvos.WithMaxIncludeDepth(2)},
			},
			err:      arvos.ErrIncludeDepth,
			contains: "page -> b -> c -> d",
		},
		"line-too-long": {
			renderTest: renderTest{
				files: map[string]string{"page": "short\n0123456789\n"},
				opts:  []arvos.RendererOption{arvos.WithMaxLineLength(8)},
			},
			err:      arvos.ErrLineTooLong,
			contains: `"page" line 2`,
		},
		"last-line-too-long": {
			renderTest: renderTest{
				files: map[string]string{"page": "0123456789"},
				opts:  []arvos.RendererOption{arvos.WithMaxLineLength(8)},
			},
			err: arvos.ErrLineTooLong,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			site := arvos.FSSite{Templates: templates(test.files)}
			var out bytes.Buffer
			err := arvos.NewRenderer(site, test.store(), test.opts...).Execute(context.Background(), &out, "page")
			if !errors.Is(err, test.err) {
				t.Fatalf("Expected error %v, got %v", test.err, err)
			}
			if !strings.Contains(err.Error(), test.contains) {
				t.Errorf("Expected error to contain %q, got %q", test.contains, err.Error())
			}
		})
	}
}

func TestRendererExecuteCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	site := arvos.FSSite{Templates: templates(map[string]string{"page": "text\n"})}
	var out bytes.Buffer
	err := arvos.NewRenderer(site, arvos.NewValues()).Execute(ctx, &out, "page")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("Expected no output, got %q", out.String())
	}
}

func TestRendererDoesNotModifyValues(t *testing.T) {
	t.Parallel()

	site := arvos.FSSite{Templates: templates(map[string]string{
		"page": "<!--#FOR N--><?N?><!--#IFDEF X--><?X?><!--#ENDIF X--><!--#ENDFOR N-->\n",
	})}
	values := valuesFrom(map[string]string{"N_0": "a", "N_1": "b", "X": "x"})
	want := map[string]string{}
	for _, key := range values.Keys() {
		want[key] = values.Value(key)
	}

	var out bytes.Buffer
	err := arvos.NewRenderer(site, values).Execute(context.Background(), &out, "page")
	if err != nil {
		t.Fatalf("Unexpected error: %s", err)
	}

	got := map[string]string{}
	for _, key := range values.Keys() {
		got[key] = values.Value(key)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Values changed by rendering (-before +after):\n%s", diff)
	}
}
