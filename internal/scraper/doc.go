// Package scraper provides HTTP fetching and HTML parsing for the club's
// ticket page.
//
// Fetching is modelled as an ordered list of strategies (the primary URL,
// mirror URLs, a headless browser) tried in sequence until one succeeds, with
// a bounded constant-backoff retry around the whole chain. The extractor
// turns the page into deduplicated match records, skipping listings that
// miss a required fragment.
package scraper
