package xconf

type options struct {
	delim string
	tag   string
}

// Option 配置 [Source]。
type Option func(*options)

func defaultOptions() *options {
	return &options{delim: ".", tag: "koanf"}
}

// WithDelim 设置键路径分隔符，默认为 "."，例如 "repo.warm_up"。
func WithDelim(delim string) Option {
	return func(o *options) {
		if delim != "" {
			o.delim = delim
		}
	}
}

// WithTag 设置 Unmarshal 使用的结构体标签，默认为 "koanf"。
func WithTag(tag string) Option {
	return func(o *options) {
		if tag != "" {
			o.tag = tag
		}
	}
}
