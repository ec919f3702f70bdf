package resscene

// Version is overridden at build time with -ldflags "-X github.com/aretw0/resscene.Version=...".
var Version = "dev"
