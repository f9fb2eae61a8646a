package domain

// VideoFile 描述媒体库目录下的一个视频文件（只做 stat，不读内容）。
//
// 不变量（实现必须遵守）：
// - AbsPath 必须是 clean + absolute
// - Code 由文件名推导（见 code.FromFilename），可能为空（无法推导时）
type VideoFile struct {
	AbsPath string
	Name    string // 含扩展名
	Ext     string // 小写，例如 ".mp4"
	Code    Code
	Size    int64
	ModUnix int64
}
