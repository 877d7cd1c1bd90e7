// Package manhuagui knows how chapter pages on manhuagui.com are built.
//
// A chapter reader page embeds a p,a,c,k,e,d packed script whose keyword
// table is LZString-compressed. Once unpacked it calls
//
//	SMH.imgData({"bname": ..., "cname": ..., "files": [...], "cid": ..., "sl": {"md5": ...}}).preInit();
//
// Two extractors recover that manifest. BrowserExtractor loads the page in
// Chrome and captures the object handed to SMH.imgData. HTMLExtractor
// fetches the page over plain HTTP and unpacks the script in Go. Both
// validate the manifest and turn it into image descriptors with
// local paths of the form "<bname>/<cname>/<n><ext>".
//
// Client carries the header set the site and its image host expect: image
// requests need the chapter page as Referer, page requests need the region
// cookie.
package manhuagui
