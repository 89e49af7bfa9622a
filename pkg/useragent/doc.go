// Package useragent classifies User-Agent strings into coarse device classes.
//
// The coordinator only needs to know whether a tab runs in a mobile browser,
// which arms the stalled-loading safety reload:
//
//	if useragent.IsMobile(r.UserAgent()) {
//		// arm safety net
//	}
//
// Classification is keyword based and case insensitive. It is not a full
// parser: browser and OS versions are not extracted.
package useragent
