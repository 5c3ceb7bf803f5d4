/*
Package lake holds the core types shared by the dataset tools: the five-column
image/mask schema, records and their PNG-compressed samples, the serialization
envelope used for stored values, and leveled logging.

A dataset is an ordered, versioned collection of records:

	ids                int32       sequential identifier, starts at the record count
	images             image(png)  3-channel color pixel array
	masks              image(png)  mask pixel array, always with a channel axis
	split              text        "train" or "test"
	original_filename  text        de-duplication key for ingestion

Storage engines live under the storage package; dataset lifecycle (creation,
summaries) lives in datastore, and ingestion of a source tree in ingest.
*/
package lake
