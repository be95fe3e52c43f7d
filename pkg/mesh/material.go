package mesh

// Color is a linear RGB triple in the 0..1 range
type Color [3]float32

// Material is a surface description from an MTL library
type Material struct {
	Name          string
	Ambient       Color
	Diffuse       Color
	Specular      Color
	Emissive      Color
	Shininess     float32
	Dissolve      float32
	Illumination  int
	AmbientMap    string
	DiffuseMap    string
	SpecularMap   string
	BumpMap       string
	DissolveMap   string
	HasDissolve   bool
	HasShininess  bool
	HasIllumModel bool
}

// MaterialGroup is a contiguous run of triangles rendered with one material
type MaterialGroup struct {
	Material string
	Start    int
	Count    int
}
