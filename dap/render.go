package dap

/*
Renderer is the display-formatting contract. The data model never formats
values for humans itself; a renderer is passed in as a strategy and Render
dispatches to the method for the variable's variant. Renderers are free to
recurse through Render for members.
*/

////////////////////////////////////////////////////////////////////////////////

// Renderer formats variables for display.
type Renderer interface {
	RenderScalar(v *Variable) error
	RenderArray(v *Variable) error
	RenderStructure(v *Variable) error
	RenderSequence(v *Variable) error
	RenderGrid(v *Variable) error
}

// nolint:gochecknoglobals
var renderers = [NumKinds]func(Renderer, *Variable) error{
	KindScalar:    Renderer.RenderScalar,
	KindArray:     Renderer.RenderArray,
	KindStructure: Renderer.RenderStructure,
	KindSequence:  Renderer.RenderSequence,
	KindGrid:      Renderer.RenderGrid,
}

// Render formats v with r.
func Render(v *Variable, r Renderer) error {
	return renderers[v.Kind()](r, v)
}
