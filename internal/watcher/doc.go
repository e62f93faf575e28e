// Package watcher triggers full index rebuilds when corpus documents change.
//
// Each corpus folder is watched with fsnotify. Events for files other than
// .docx and .pptx are ignored, and the rest are debounced so one save from
// an editor produces one rebuild.
//
//	w, err := watcher.New(watcher.Options{Folders: cfg.Corpus.Folders}, func(ctx context.Context) error {
//	    _, err := eng.Rebuild(ctx, auth.Anonymous)
//	    return err
//	})
//	if err != nil {
//	    return err
//	}
//	return w.Run(ctx)
package watcher
