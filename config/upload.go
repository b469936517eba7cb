package config

type UploadConfig struct {
	AllowedMimeTypes []string
	MaxSizeMB        int64
	PathPrefix       string
}

// DeliveryAttachmentContext - ключ правил для вложений доставок.
const DeliveryAttachmentContext = "delivery_attachment"

var UploadContexts = map[string]UploadConfig{
	DeliveryAttachmentContext: {
		AllowedMimeTypes: []string{
			"image/jpeg", "image/png", "image/gif", "image/webp",
			"application/pdf", "application/zip",
			"video/mp4", "video/webm",
			"text/plain; charset=utf-8",
		},
		MaxSizeMB:  50,
		PathPrefix: "deliveries/files",
	},
}
