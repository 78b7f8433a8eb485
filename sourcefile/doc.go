// Package sourcefile reads VM options from options files and from the
// options resource embedded in a runtime image.
//
// Options files hold whitespace separated options. Quotes group words and
// "#" starts a comment that runs to the end of the line.
//
// Example:
//
//	res := sourcefile.NewResource(image, "jdk/internal/vm/options")
//	args := vmopts.NewArguments().WithResource(res)
package sourcefile
